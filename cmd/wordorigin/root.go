package main

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/japaniel/wordorigin/pkg/config"
	"github.com/japaniel/wordorigin/pkg/db"
	"github.com/japaniel/wordorigin/pkg/fetch"
	"github.com/japaniel/wordorigin/pkg/logging"
	"github.com/japaniel/wordorigin/pkg/pattern"
	"github.com/japaniel/wordorigin/pkg/resolver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, logger: logging.Nop()}

	root := &cobra.Command{
		Use:   "wordorigin",
		Short: "Find the words of French origin in a line-numbered text",
		Long: `wordorigin extracts the words of a text whose lines start with a line number,
looks each word up on the Oxford English Dictionary and keeps those whose
origin note matches one of the search patterns (by default, a mention of
French in the Origin, Etymology or Etymons section).

Runs are stored in a SQLite database and can be interrupted with Ctrl-C and
resumed later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Path to SQLite database (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newLinesCmd(a),
		newLookupCmd(a),
		newRunCmd(a),
		newResumeCmd(a),
		newRunsCmd(a),
		newResultsCmd(a),
		newPatternsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Database = a.dbPath
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openDB() (*sql.DB, error) {
	conn, err := db.Open(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.logger.Debug("database opened",
		zap.String("path", a.cfg.Database), zap.String("driver", db.DriverType()))
	return conn, nil
}

func (a *app) newResolver() (*resolver.Resolver, error) {
	patterns, err := a.cfg.ResolvePatterns()
	if err != nil {
		return nil, err
	}
	matcher, err := pattern.Compile(patterns)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient()
	client.HTTP.Timeout = a.cfg.GetFetchTimeout()
	if a.cfg.Fetch.UserAgent != "" {
		client.UserAgent = a.cfg.Fetch.UserAgent
	}
	if a.cfg.Fetch.MaxBodyBytes > 0 {
		client.MaxBodySize = a.cfg.Fetch.MaxBodyBytes
	}
	if a.cfg.Fetch.TextMode != "" {
		client.Mode = fetch.TextMode(a.cfg.Fetch.TextMode)
	}
	client.Logger = a.logger

	return resolver.New(a.cfg.SiteProfile(), matcher, client,
		resolver.WithMaxHops(a.cfg.Site.MaxHops),
		resolver.WithLogger(a.logger))
}
