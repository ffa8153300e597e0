package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/japaniel/wordorigin/pkg/resolver"
	"github.com/spf13/cobra"
)

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup WORD",
		Short: "Look up the origin of a single word",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.newResolver()
			if err != nil {
				return err
			}
			word := strings.ToLower(strings.TrimSpace(args[0]))
			out, err := res.Lookup(cmd.Context(), word)
			if errors.Is(err, resolver.ErrAccessDenied) {
				return fmt.Errorf("%s: the dictionary site refused access (are you logged in or on an institutional network?)", word)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "%s: %s\n", word, out.Kind)
			fmt.Fprintf(a.out, "  site:        %s\n", res.Site().Root)
			switch out.Kind {
			case resolver.KindFound:
				fmt.Fprintf(a.out, "  translation: %s\n  origin:      %s\n", out.Translation, out.OriginNote)
			case resolver.KindUnclassified:
				fmt.Fprintln(a.out, "  no origin note matched the search patterns")
			}
			return nil
		},
	}
}
