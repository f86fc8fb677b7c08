package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qmtrends/internal/modkit"
	"qmtrends/internal/platform/config"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/store"
	pipemod "qmtrends/internal/services/pipeline/module"
)

// rootFlags are shared by every subcommand
type rootFlags struct {
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:   "qmtrends",
		Short: "Resolve Quark Matter speaker affiliations and report country trends",
		Long: `qmtrends fetches Quark Matter programmes from Indico, resolves every speaker
affiliation to an institute and country with an auditable confidence tier,
and writes per-year country shares to files, Postgres and ClickHouse.

Examples:
  qmtrends run
  qmtrends run --years 2019,2022 --offline
  qmtrends resolve "Brookhaven National Laboratory"
  qmtrends instdb check data/institutes.csv
  qmtrends migrate up`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap(rf)
		},
	}
	root.PersistentFlags().StringVar(&rf.envFile, "env-file", ".env", "dotenv file loaded before config is read, missing is fine")
	root.PersistentFlags().StringVar(&rf.logLevel, "log-level", "", "overrides QMT_LOG_LEVEL")

	root.AddCommand(
		newRunCmd(),
		newRunsCmd(),
		newResolveCmd(),
		newInstDBCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

// execute runs the CLI and maps the outcome to an exit status
func execute(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	logger.Get().Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("qmtrends failed")
	fmt.Fprintln(root.ErrOrStderr(), "error:", err)
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return perr.Exit(err)
}

// bootstrap loads the dotenv file and initializes the logger once
func bootstrap(rf rootFlags) error {
	if rf.envFile != "" {
		if err := godotenv.Load(rf.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load %s", rf.envFile)
		}
	}
	if rf.logLevel != "" {
		_ = os.Setenv("QMT_LOG_LEVEL", rf.logLevel)
	}
	logger.Init(logger.FromEnv())
	return nil
}

// storeConfig reads the optional sink backends; a backend is enabled by setting its URL
func storeConfig(cfg config.Conf) store.Config {
	pg := cfg.Prefix("CORE_PG_")
	ch := cfg.Prefix("CORE_CH_")
	pgURL := pg.MayString("URL", "")
	chURL := ch.MayString("URL", "")
	return store.Config{
		AppName: "qmtrends",
		PG: store.PGConfig{
			Enabled:     pgURL != "" && pg.MayBool("ENABLED", true),
			URL:         pgURL,
			MaxConns:    int32(pg.MayInt("MAX_CONNS", 4)),
			LogSQL:      pg.MayBool("LOG_SQL", false),
			SlowQueryMs: pg.MayInt("SLOW_MS", 500),
		},
		CH: store.CHConfig{
			Enabled:     chURL != "" && ch.MayBool("ENABLED", true),
			URL:         chURL,
			DialTimeout: ch.MayDuration("DIAL_TIMEOUT", 0),
		},
	}
}

// openDeps opens the configured backends and returns module deps plus a closer
func openDeps(ctx context.Context, cfg config.Conf) (modkit.Deps, func(), error) {
	log := logger.Get()
	st, err := store.Open(ctx, storeConfig(cfg), store.WithLogger(*log))
	if err != nil {
		return modkit.Deps{}, nil, err
	}
	closer := func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}
	if err := st.Guard(ctx); err != nil {
		closer()
		return modkit.Deps{}, nil, err
	}
	return modkit.Deps{Log: *log, Cfg: cfg, PG: st.PG, CH: st.CH}, closer, nil
}

// newPipeline builds the pipeline module from env with overrides applied
// without withStore no backend is opened and only the files sink can be wired
func newPipeline(ctx context.Context, withStore bool, override func(*pipemod.Options)) (*pipemod.Module, func(), error) {
	cfg := config.New()
	deps := modkit.Deps{Log: *logger.Get(), Cfg: cfg}
	closer := func() {}
	if withStore {
		var err error
		if deps, closer, err = openDeps(ctx, cfg); err != nil {
			return nil, nil, err
		}
	}
	opts := pipemod.FromConfig(cfg)
	if override != nil {
		override(&opts)
	}
	m, err := pipemod.New(deps, opts)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return m, closer, nil
}
