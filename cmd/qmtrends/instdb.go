package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"qmtrends/internal/core/instdb"
	perr "qmtrends/internal/platform/errors"
	pipemod "qmtrends/internal/services/pipeline/module"
	"qmtrends/internal/services/pipeline/service"
)

func newInstDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instdb",
		Short: "Inspect and merge institute reference tables",
	}
	cmd.AddCommand(newInstDBCheckCmd(), newInstDBMergeCmd())
	return cmd
}

func newInstDBCheckCmd() *cobra.Command {
	var lenient bool
	cmd := &cobra.Command{
		Use:   "check [table.csv]",
		Short: "Load a table and report malformed rows and conflicts",
		Long: `Check loads one institute table, defaulting to QMT_PIPELINE_INSTDB, and lists
every malformed row and every row that disagrees with an earlier mapping.
It exits with status 2 when anything is reported unless --lenient is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closer, err := newPipeline(cmd.Context(), false, func(o *pipemod.Options) { o.OutDir = "" })
			if err != nil {
				return err
			}
			defer closer()

			path := m.Options().InstDBPath
			if len(args) == 1 {
				path = args[0]
			}
			rep, err := m.Service().CheckInstDB(cmd.Context(), path)
			if err != nil {
				return err
			}
			printTableReport(cmd.OutOrStdout(), rep)
			if n := len(rep.Malformed) + len(rep.Conflicts); n > 0 && !lenient {
				return perr.Malformedf("instdb: %s has %d problem rows", path, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "report problems without failing")
	return cmd
}

func newInstDBMergeCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge --out merged.csv <table.csv>...",
		Short: "Merge tables in order, the first mapping of an institute wins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closer, err := newPipeline(cmd.Context(), false, func(o *pipemod.Options) { o.OutDir = "" })
			if err != nil {
				return err
			}
			defer closer()

			mr, err := m.Service().MergeInstDB(cmd.Context(), out, args...)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, in := range mr.Inputs {
				printTableReport(w, in)
			}
			fmt.Fprintf(w, "merged %d tables into %s: %d entries, %d conflicts\n",
				len(mr.Inputs), out, mr.Entries, len(mr.Conflicts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "merged table path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printTableReport(w io.Writer, rep service.TableReport) {
	fmt.Fprintf(w, "%s: %d rows, %d added, %d malformed, %d conflicts\n",
		rep.Path, rep.Rows, rep.Added, len(rep.Malformed), len(rep.Conflicts))
	for _, mr := range rep.Malformed {
		fmt.Fprintf(w, "  line %d: %s (%v)\n", mr.Line, strings.Join(mr.Raw, ","), mr.Err)
	}
	for _, c := range rep.Conflicts {
		printConflict(w, c)
	}
}

func printConflict(w io.Writer, c instdb.Conflict) {
	fmt.Fprintf(w, "  conflict %q: kept %s, rejected %s (alias %q)\n", c.Key, c.Existing, c.Proposed, c.Alias)
}
