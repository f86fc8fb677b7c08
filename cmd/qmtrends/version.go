package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/version"
	perr "qmtrends/internal/platform/errors"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build, rule pack and resolver versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := rulepack.Load()
			if err != nil {
				return err
			}
			bi := version.Info(p.Version)
			w := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(w).Encode(bi); err != nil {
					return perr.Wrap(err, perr.ErrorCodeJSON, "encode build info")
				}
				return nil
			}
			fmt.Fprintf(w, "%s %s (commit %s, built %s) rules v%d resolver v%d\n",
				bi.Service, bi.Version, bi.Commit, bi.Date, bi.Rules, bi.Resolver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
