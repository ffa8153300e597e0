// Package config loads wordorigin settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/japaniel/wordorigin/pkg/fetch"
	"github.com/japaniel/wordorigin/pkg/pattern"
	"github.com/japaniel/wordorigin/pkg/resolver"
	"gopkg.in/yaml.v3"
)

// Config holds all wordorigin configuration.
type Config struct {
	Database string `yaml:"database"`

	Site SiteConfig `yaml:"site"`

	// Patterns are tried in order; PatternsFile, when set, replaces them.
	Patterns     []string `yaml:"patterns"`
	PatternsFile string   `yaml:"patterns_file"`

	// IncludeNotFound records words the dictionary does not know.
	IncludeNotFound bool `yaml:"include_not_found"`
	// SaveNotFound keeps those rows in exported files.
	SaveNotFound bool `yaml:"save_not_found"`
	// MaxConsecutiveFailures stops a batch after that many transport errors in
	// a row. 0 never stops.
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`

	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig describes the dictionary site. See resolver.Site.
type SiteConfig struct {
	Root                string `yaml:"root"`
	SearchPath          string `yaml:"search_path"`
	HomeTitle           string `yaml:"home_title"`
	DisambiguationTitle string `yaml:"disambiguation_title"`
	NoResultsTitle      string `yaml:"no_results_title"`
	TitleSuffix         string `yaml:"title_suffix"`
	FullEntryLink       string `yaml:"full_entry_link"`
	MaxHops             int    `yaml:"max_hops"`
}

// FetchConfig configures the HTTP client.
type FetchConfig struct {
	UserAgent    string `yaml:"user_agent"`
	Timeout      string `yaml:"timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	TextMode     string `yaml:"text_mode"` // full, readable
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	oed := resolver.OED()
	return &Config{
		Database: "wordorigin.db",
		Site: SiteConfig{
			Root:                oed.Root,
			SearchPath:          oed.SearchPath,
			HomeTitle:           oed.HomeTitle,
			DisambiguationTitle: oed.DisambiguationTitle,
			NoResultsTitle:      oed.NoResultsTitle,
			TitleSuffix:         oed.TitleSuffix,
			FullEntryLink:       oed.FullEntryLink,
			MaxHops:             resolver.DefaultMaxHops,
		},
		Patterns:        pattern.DefaultPatterns(),
		IncludeNotFound: true,
		Fetch: FetchConfig{
			UserAgent:    fetch.DefaultUserAgent,
			Timeout:      fetch.DefaultTimeout.String(),
			MaxBodyBytes: fetch.DefaultMaxBodySize,
			TextMode:     string(fetch.TextFull),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// A relative patterns file is relative to the config file.
	if cfg.PatternsFile != "" && !filepath.IsAbs(cfg.PatternsFile) {
		cfg.PatternsFile = filepath.Join(filepath.Dir(path), cfg.PatternsFile)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("WORDORIGIN_DB"); path != "" {
		c.Database = path
	}
	if root := os.Getenv("WORDORIGIN_SITE_ROOT"); root != "" {
		c.Site.Root = root
	}
	if ua := os.Getenv("WORDORIGIN_USER_AGENT"); ua != "" {
		c.Fetch.UserAgent = ua
	}
}

// GetFetchTimeout returns the HTTP timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Timeout)
	if err != nil || d <= 0 {
		return fetch.DefaultTimeout
	}
	return d
}

// SiteProfile converts the site section for the resolver.
func (c *Config) SiteProfile() resolver.Site {
	return resolver.Site{
		Root:                c.Site.Root,
		SearchPath:          c.Site.SearchPath,
		HomeTitle:           c.Site.HomeTitle,
		DisambiguationTitle: c.Site.DisambiguationTitle,
		NoResultsTitle:      c.Site.NoResultsTitle,
		TitleSuffix:         c.Site.TitleSuffix,
		FullEntryLink:       c.Site.FullEntryLink,
	}
}

// ResolvePatterns returns the patterns file content when one is configured,
// the inline patterns otherwise.
func (c *Config) ResolvePatterns() ([]string, error) {
	if c.PatternsFile != "" {
		return pattern.Load(c.PatternsFile)
	}
	if len(c.Patterns) == 0 {
		return nil, fmt.Errorf("no search patterns configured")
	}
	return c.Patterns, nil
}

// ValidTextModes lists the accepted fetch.text_mode values.
var ValidTextModes = []string{string(fetch.TextFull), string(fetch.TextReadable)}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path not configured")
	}
	if c.Site.Root == "" {
		return fmt.Errorf("site root not configured")
	}
	if c.Site.SearchPath == "" {
		return fmt.Errorf("site search_path not configured")
	}
	if c.Site.MaxHops < 0 {
		return fmt.Errorf("site max_hops must not be negative, got %d", c.Site.MaxHops)
	}
	if c.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("max_consecutive_failures must not be negative, got %d", c.MaxConsecutiveFailures)
	}
	if c.Fetch.Timeout != "" {
		if _, err := time.ParseDuration(c.Fetch.Timeout); err != nil {
			return fmt.Errorf("invalid fetch timeout %q: %w", c.Fetch.Timeout, err)
		}
	}

	validMode := c.Fetch.TextMode == ""
	for _, m := range ValidTextModes {
		if c.Fetch.TextMode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid fetch text_mode: %s (valid: %v)", c.Fetch.TextMode, ValidTextModes)
	}

	patterns, err := c.ResolvePatterns()
	if err != nil {
		return err
	}
	if _, err := pattern.Compile(patterns); err != nil {
		return err
	}
	return nil
}
