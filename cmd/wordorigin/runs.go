package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/japaniel/wordorigin/pkg/db"
	"github.com/spf13/cobra"
)

func newRunsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.openDB()
			if err != nil {
				return err
			}
			defer conn.Close()

			runs, err := db.ListRuns(conn)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.out, "No runs yet")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tSOURCE\tUPDATED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\n",
					r.ID, r.Status, r.Processed, r.Total, r.SourcePath, r.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newResultsCmd(a *app) *cobra.Command {
	var csvPath string
	var saveNotFound, clearResults bool
	cmd := &cobra.Command{
		Use:   "results RUN_ID",
		Short: "Show, export or clear the results of a run",
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

			if clearResults {
				n, err := db.ClearResults(conn, run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Cleared %d results of run %s\n", n, run.ID)
				return nil
			}

			if csvPath != "" {
				include := a.cfg.SaveNotFound
				if cmd.Flags().Changed("save-not-found") {
					include = saveNotFound
				}
				return a.exportRun(conn, run.ID, csvPath, include)
			}

			results, err := db.GetResults(conn, run.ID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WORD\tLINE\tCOUNT\tTRANSLATION\tORIGIN")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.Word, r.LineNumber, r.Count, r.Translation, r.OriginNote)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d results, run %s\n", len(results), run.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write the results to this file instead of printing them")
	cmd.Flags().BoolVar(&saveNotFound, "save-not-found", false, "Keep not-found words in the exported file (default from config)")
	cmd.Flags().BoolVar(&clearResults, "clear", false, "Delete the stored results of the run")
	cmd.MarkFlagsMutuallyExclusive("clear", "csv")
	return cmd
}
