package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"qmtrends/internal/adapters/indico"
	"qmtrends/internal/core/aggregate"
	"qmtrends/internal/core/audit"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/services/pipeline/domain"
	pipemod "qmtrends/internal/services/pipeline/module"
)

type runFlags struct {
	years      []int
	workers    int
	outDir     string
	offline    bool
	refresh    bool
	saveInstDB bool
	threshold  float64
	review     int
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, resolve, aggregate and write every configured conference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			m, closer, err := newPipeline(ctx, true, func(o *pipemod.Options) {
				if flags.Changed("workers") {
					o.Workers = f.workers
				}
				if flags.Changed("out") {
					o.OutDir = f.outDir
				}
				if flags.Changed("threshold") {
					o.Threshold = f.threshold
				}
				if flags.Changed("save-instdb") {
					o.SaveInstDB = f.saveInstDB
				}
				if flags.Changed("offline") {
					o.Indico.Offline = f.offline
				}
				if flags.Changed("refresh") {
					o.Indico.Refresh = f.refresh
				}
			})
			if err != nil {
				return err
			}
			defer closer()

			confs, err := m.Conferences(f.years...)
			if err != nil {
				return err
			}
			if err := m.EnsureSchema(ctx); err != nil {
				return err
			}
			res, err := m.Service().Run(ctx, confs)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), res, m.CacheStats())
			if f.review > 0 {
				printReview(cmd.OutOrStdout(), res, f.review)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntSliceVar(&f.years, "years", nil, "only these years from the conference list, in this order")
	fl.IntVar(&f.workers, "workers", 4, "concurrent conference fetches")
	fl.StringVar(&f.outDir, "out", "", "files sink directory, empty disables it")
	fl.Float64Var(&f.threshold, "threshold", 20, "outlier gap in percentage points")
	fl.BoolVar(&f.saveInstDB, "save-instdb", false, "write learned institutes back to the reference table")
	fl.BoolVar(&f.offline, "offline", false, "serve talks from the cache only")
	fl.BoolVar(&f.refresh, "refresh", false, "refetch every conference and overwrite the cache")
	fl.IntVar(&f.review, "review", 0, "list up to N keyword-resolved talks per outlier country")
	return cmd
}

// printRun writes a per-year summary; detail lives in the sinks
func printRun(w io.Writer, res domain.Result, cache indico.CacheStats) {
	fmt.Fprintf(w, "run %s: %d talks, %d unknown, %d diagnostics, %d conflicts\n",
		res.Run.ID, res.Run.Talks, res.Run.Unknown, res.Run.Diagnostics, res.Run.Conflicts)
	for _, f := range res.Run.Fetches {
		if f.Failed() {
			fmt.Fprintf(w, "  %s (%s) fetch failed: %s\n", f.Conference.Label(), f.Conference.IndicoID, f.Error)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tTALKS\tCOUNTRIES\tHHI\tHHI(known)\tTOP")
	for _, ys := range res.Stats.Years {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.3f\t%.3f\t%s\n",
			ys.Year, ys.Total, ys.UniqueCountries, ys.HHI, ys.HHIKnown, topCountry(ys))
	}
	_ = tw.Flush()

	for _, o := range res.Outliers.Outliers {
		fmt.Fprintf(w, "outlier %s %s: heuristic share %.1f%% vs baseline %.1f%%\n",
			o.Kind, o.Label, o.HeuristicShare, res.Outliers.Baseline)
	}
	for _, s := range res.Patterns[audit.PatternsAll] {
		fmt.Fprintf(w, "pattern %s: %d (%.1f%%)\n", s.Label, s.Count, s.Percent)
	}
	fmt.Fprintf(w, "cache: %d hits, %d misses, %d stale\n", cache.Hits, cache.Misses, cache.Stale)
}

func topCountry(ys aggregate.YearStats) string {
	for _, s := range ys.Countries {
		if s.Label != talk.Unknown {
			return fmt.Sprintf("%s %.1f%%", s.Label, s.Percent)
		}
	}
	return "-"
}

// printReview lists talks worth a manual look for each country outlier
func printReview(w io.Writer, res domain.Result, n int) {
	for _, o := range res.Outliers.Outliers {
		if o.Kind != audit.KindCountry {
			continue
		}
		fmt.Fprintf(w, "review %s:\n", o.Label)
		for _, rt := range audit.Suspicious(res.Talks, o.Label, n) {
			fmt.Fprintf(w, "  %d  %-24s %s  [%s]\n",
				rt.Year, rt.SpeakerName, rt.RawAffiliation, rt.Affiliation.Rule)
		}
	}
}
