package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qmtrends/internal/core/talk"
	perr "qmtrends/internal/platform/errors"
	pipemod "qmtrends/internal/services/pipeline/module"
)

func newResolveCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <affiliation>...",
		Short: "Resolve one affiliation string and print the candidate trail",
		Long: `Resolve joins its arguments into one raw affiliation, resolves it against
the rule pack and the reference institute table, and prints every candidate
that was tried with the tier that decided it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closer, err := newPipeline(cmd.Context(), false, func(o *pipemod.Options) { o.OutDir = "" })
			if err != nil {
				return err
			}
			defer closer()

			a, err := m.Service().ResolveOne(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(a); err != nil {
					return perr.Wrap(err, perr.ErrorCodeJSON, "encode affiliation")
				}
				return nil
			}
			printAffiliation(cmd.OutOrStdout(), a)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the affiliation as JSON")
	return cmd
}

func printAffiliation(w io.Writer, a talk.Affiliation) {
	fmt.Fprintf(w, "raw:        %s\n", a.Raw)
	fmt.Fprintf(w, "key:        %s\n", a.Key)
	fmt.Fprintf(w, "institute:  %s\n", a.Institute)
	fmt.Fprintf(w, "country:    %s\n", a.Country)
	fmt.Fprintf(w, "confidence: %s\n", a.Confidence)
	if a.Rule != "" {
		fmt.Fprintf(w, "rule:       %s\n", a.Rule)
	}
	if len(a.Trail) == 0 {
		return
	}
	fmt.Fprintln(w, "trail:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, at := range a.Trail {
		country := at.Country
		if country == "" {
			country = talk.Unknown
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", i+1, at.Candidate, country, at.Confidence, at.Rule)
	}
	_ = tw.Flush()
}
