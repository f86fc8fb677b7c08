package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"qmtrends/internal/platform/config"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/store"
	"qmtrends/internal/platform/store/pg"
	"qmtrends/internal/services/pipeline/repo"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the results database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending Postgres migrations and create the ClickHouse stats table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.New()
			sc := storeConfig(cfg)
			if !sc.PG.Enabled && !sc.CH.Enabled {
				return perr.InvalidArgf("migrate: set CORE_PG_URL or CORE_CH_URL")
			}
			if sc.PG.Enabled {
				err := withMigrator(sc.PG.URL, func(m *pg.Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return printVersion(cmd, m)
				})
				if err != nil {
					return err
				}
			}
			if sc.CH.Enabled {
				if err := ensureColumnar(cmd.Context(), sc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "clickhouse: %s ready\n", repo.TableYearCountry)
			}
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := pgURL()
			if err != nil {
				return err
			}
			return withMigrator(dsn, func(m *pg.Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied Postgres schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := pgURL()
			if err != nil {
				return err
			}
			return withMigrator(dsn, func(m *pg.Migrator) error { return printVersion(cmd, m) })
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func pgURL() (string, error) {
	sc := storeConfig(config.New())
	if !sc.PG.Enabled {
		return "", perr.InvalidArgf("migrate: CORE_PG_URL is not set")
	}
	return sc.PG.URL, nil
}

func withMigrator(dsn string, fn func(*pg.Migrator) error) error {
	m, err := pg.NewMigrator(dsn, repo.Migrations, repo.MigrationsDir, logger.Named("migrate"))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Get().Warn().Err(err).Msg("migrate: close")
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *pg.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "postgres: schema version %d dirty=%t\n", v, dirty)
	return nil
}

// ensureColumnar opens clickhouse alone and creates the stats table
func ensureColumnar(ctx context.Context, sc store.Config) error {
	sc.PG.Enabled = false
	st, err := store.Open(ctx, sc, store.WithLogger(*logger.Get()))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close(context.Background()) }()
	return repo.NewColumnar(st.CH).EnsureSchema(ctx)
}
