package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/services/pipeline/domain"
	"qmtrends/internal/services/pipeline/repo"
)

func newRunsCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs recorded in postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			m, closer, err := newPipeline(ctx, true, nil)
			if err != nil {
				return err
			}
			defer closer()

			runs, err := m.RecentRuns(ctx, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(runs); err != nil {
					return perr.Wrap(err, perr.ErrorCodeJSON, "encode runs")
				}
				return nil
			}
			printRuns(w, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", repo.DefaultRecentRuns, "number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printRuns(w io.Writer, runs []domain.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tTOOK\tTALKS\tUNKNOWN\tFAILED\tRULES\tVERSION")
	for _, r := range runs {
		failed := 0
		for _, f := range r.Fetches {
			if f.Failed() {
				failed++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d/%d\tv%d\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.DateTime), r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Talks, r.Unknown, failed, len(r.Fetches), r.Build.Rules, r.Build.Version)
	}
	_ = tw.Flush()
}
