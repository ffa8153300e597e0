package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/japaniel/wordorigin/pkg/batch"
	"github.com/japaniel/wordorigin/pkg/db"
	"github.com/japaniel/wordorigin/pkg/export"
	"github.com/japaniel/wordorigin/pkg/extract"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	writerBatchSize     = 20
	writerFlushInterval = time.Second
)

func newRunCmd(a *app) *cobra.Command {
	var csvPath string
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Look up every word of FILE and store the words of French origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			lines, counts := extract.Extract(string(content))

			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			run, err := createRun(conn, args[0], content, a.cfg.Site.Root, lines, counts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Run %s: %d words on %d lines\n", run.ID, run.Total, len(lines))
			return a.executeRun(cmd.Context(), conn, run, lines, counts, csvPath)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Export the results to this file when the run ends")
	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	var csvPath, sourcePath string
	cmd := &cobra.Command{
		Use:   "resume RUN_ID",
		Short: "Continue a cancelled or failed run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			run, err := db.GetRun(conn, args[0])
			if err != nil {
				return err
			}
			if sourcePath != "" {
				content, err := os.ReadFile(sourcePath)
				if err != nil {
					return err
				}
				if run.Digest != "" && db.Digest(content) != run.Digest {
					return fmt.Errorf("%s has changed since run %s started; start a new run instead", sourcePath, run.ID)
				}
			}
			if !run.Resumable() {
				fmt.Fprintf(a.out, "Run %s is already completed\n", run.ID)
				if csvPath != "" {
					return a.exportRun(conn, run.ID, csvPath, a.cfg.SaveNotFound)
				}
				return nil
			}

			lines, err := db.LoadPending(conn, run.ID)
			if err != nil {
				return fmt.Errorf("load pending words: %w", err)
			}
			counts, err := db.LoadWordCounts(conn, run.ID)
			if err != nil {
				return fmt.Errorf("load word counts: %w", err)
			}
			fmt.Fprintf(a.out, "Resuming run %s: %d of %d words left\n", run.ID, lines.WordTotal(), run.Total)
			return a.executeRun(cmd.Context(), conn, run, lines, counts, csvPath)
		},
	}
	cmd.Flags().StringVar(&sourcePath, "source", "", "Refuse to resume if this file differs from the run's source")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Export the results to this file when the run ends")
	return cmd
}

func createRun(conn *sql.DB, path string, content []byte, siteRoot string, lines extract.LineMap, counts extract.WordCounts) (db.Run, error) {
	tx, err := conn.Begin()
	if err != nil {
		return db.Run{}, err
	}
	defer tx.Rollback()

	run, err := db.CreateRun(tx, path, db.Digest(content), siteRoot, lines.WordTotal())
	if err != nil {
		return db.Run{}, err
	}
	if err := db.SaveLines(tx, run.ID, lines, counts); err != nil {
		return db.Run{}, err
	}
	if err := tx.Commit(); err != nil {
		return db.Run{}, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// executeRun drives one batch over lines, persisting each result and each
// finished word as it goes. Cancelling ctx stops the batch after the word in
// flight; the run is then left resumable.
func (a *app) executeRun(ctx context.Context, conn *sql.DB, run db.Run, lines extract.LineMap, counts extract.WordCounts, csvPath string) error {
	res, err := a.newResolver()
	if err != nil {
		return err
	}
	if err := db.UpdateRunStatus(conn, run.ID, db.StatusRunning, run.Processed); err != nil {
		return err
	}

	bw := db.NewBatchWriter(conn, writerBatchSize, writerFlushInterval, a.logger)
	runLog := a.logger.With(zap.String("run", run.ID))

	driver := batch.NewDriver(res.Lookup)
	driver.IncludeNotFound = a.cfg.IncludeNotFound
	driver.MaxConsecutiveFailures = a.cfg.MaxConsecutiveFailures
	driver.Logger = runLog
	driver.OnResult = func(row batch.ResultRow) {
		result := db.ResultFromRow(run.ID, row)
		if err := bw.Submit(func(_ context.Context, tx *sql.Tx) error {
			return db.UpsertResult(tx, result)
		}); err != nil {
			runLog.Error("result not saved", zap.String("word", row.Word), zap.Error(err))
		}
	}
	driver.OnWordDone = func(line int, word string) {
		if err := bw.Submit(func(_ context.Context, tx *sql.Tx) error {
			return db.MarkWordDone(tx, run.ID, word)
		}); err != nil {
			runLog.Error("progress not saved", zap.String("word", word), zap.Int("line", line), zap.Error(err))
		}
	}

	// The batch must not see the interrupt as a context cancellation, or the
	// lookup in flight would be aborted; the interrupt is turned into a
	// cooperative cancel instead.
	runner := batch.NewRunner()
	h, err := runner.Start(context.WithoutCancel(ctx), driver, lines, counts)
	if err != nil {
		bw.Close()
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		// counts are relative to this batch; a resumed run continues from run.Processed
		for p := range h.Progress() {
			if p.Done {
				fmt.Fprintf(a.out, "[%d/%d] %s\n", run.Processed+p.Current, run.Total, p.Label)
			}
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.errOut, "Interrupted: finishing the current word...")
			h.Cancel()
		case <-h.Done():
		}
		return nil
	})

	rep := h.Wait()
	_ = g.Wait()
	runner.Wait()
	if err := bw.Close(); err != nil {
		return fmt.Errorf("saving results: %w", err)
	}

	processed := run.Processed + rep.Processed
	status := runStatus(rep.Status)
	if err := db.UpdateRunStatus(conn, run.ID, status, processed); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Run %s %s: %d/%d words processed, %d results, %d unclassified, %d failed\n",
		run.ID, status, processed, run.Total, rep.Results.Len(), rep.Unclassified, rep.Failed)
	if rep.Status != batch.StatusCompleted {
		fmt.Fprintf(a.out, "%d words left; continue with: wordorigin resume %s\n", rep.Remaining.WordTotal(), run.ID)
	}

	if csvPath != "" {
		if err := a.exportRun(conn, run.ID, csvPath, a.cfg.SaveNotFound); err != nil {
			return err
		}
	}

	if rep.Status == batch.StatusFailed {
		return fmt.Errorf("run %s failed: %w", run.ID, rep.Err)
	}
	return nil
}

func runStatus(s batch.Status) string {
	switch s {
	case batch.StatusCompleted:
		return db.StatusCompleted
	case batch.StatusCancelled:
		return db.StatusCancelled
	default:
		return db.StatusFailed
	}
}

func (a *app) exportRun(conn *sql.DB, runID, path string, includeNotFound bool) error {
	results, err := db.GetResults(conn, runID)
	if err != nil {
		return err
	}
	rows := make([]batch.ResultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Row())
	}
	n, err := export.WriteFile(path, rows, export.Options{IncludeNotFound: includeNotFound})
	if err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	fmt.Fprintf(a.out, "Exported %d rows to %s\n", n, path)
	return nil
}
