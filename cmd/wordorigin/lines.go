package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/japaniel/wordorigin/pkg/extract"
	"github.com/spf13/cobra"
)

func newLinesCmd(a *app) *cobra.Command {
	var showCounts bool
	cmd := &cobra.Command{
		Use:   "lines FILE",
		Short: "Show the words that would be looked up, by line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, counts, err := extract.ExtractFile(args[0])
			if err != nil {
				return err
			}
			for _, n := range lines.Numbers() {
				fmt.Fprintf(a.out, "%d: %s\n", n, strings.Join(lines[n].Words, ", "))
			}
			fmt.Fprintf(a.out, "%d lines, %d distinct words, %d words in total\n",
				len(lines), len(counts), counts.Total())

			if showCounts {
				words := make([]string, 0, len(counts))
				for w := range counts {
					words = append(words, w)
				}
				sort.Strings(words)
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				for _, w := range words {
					fmt.Fprintf(tw, "%s\t%d\n", w, counts[w])
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showCounts, "counts", false, "Also print the count of every word")
	return cmd
}
