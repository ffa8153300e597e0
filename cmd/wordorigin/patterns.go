package main

import (
	"fmt"

	"github.com/japaniel/wordorigin/pkg/pattern"
	"github.com/spf13/cobra"
)

func newPatternsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect and save the origin search patterns",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active search patterns in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := a.cfg.ResolvePatterns()
			if err != nil {
				return err
			}
			for i, p := range patterns {
				fmt.Fprintf(a.out, "%d\t%s\n", i+1, p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save FILE",
		Short: "Write the active search patterns to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := a.cfg.ResolvePatterns()
			if err != nil {
				return err
			}
			if err := pattern.Save(args[0], patterns); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %d patterns to %s\n", len(patterns), args[0])
			return nil
		},
	})
	return cmd
}
