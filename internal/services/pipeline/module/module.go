// Package module wires the pipeline service from config and core deps
package module

import (
	"context"

	"qmtrends/internal/adapters/indico"
	"qmtrends/internal/core/rulepack"
	"qmtrends/internal/core/session"
	"qmtrends/internal/core/talk"
	"qmtrends/internal/modkit"
	"qmtrends/internal/modkit/repokit"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/services/pipeline/domain"
	"qmtrends/internal/services/pipeline/repo"
	"qmtrends/internal/services/pipeline/service"
)

// Ports exposed by the pipeline module
type Ports struct {
	Runner  domain.RunnerPort
	Service *service.Service
	// History is nil without postgres
	History domain.HistoryPort
}

// Module implements modkit.Module
type Module struct {
	deps     modkit.Deps
	opts     Options
	svc      *service.Service
	cache    *indico.CachedSource
	columnar *repo.Columnar
	history  domain.HistoryPort
	ports    Ports
}

var _ modkit.Module = (*Module)(nil)

// New constructs the pipeline module; sinks follow the backends present in deps
func New(deps modkit.Deps, opts Options) (*Module, error) {
	if opts.Indico.Offline && opts.Indico.CacheDir == "" {
		return nil, perr.InvalidArgf("pipeline: offline mode needs a cache dir")
	}

	pack, err := rulepack.Load()
	if err != nil {
		return nil, err
	}

	client := indico.NewClient(indico.Options{
		BaseURL:    opts.Indico.BaseURL,
		Token:      opts.Indico.Token,
		Timeout:    opts.Indico.Timeout,
		MaxRetries: opts.Indico.Retries,
		RetryBase:  opts.Indico.RetryBase,
	})
	var src domain.TalkSource = indico.NewSource(client, session.New(pack),
		indico.WithTitleKeywords(opts.Indico.TitleKeywords...))

	m := &Module{deps: deps, opts: opts}
	if opts.Indico.CacheDir != "" {
		m.cache = indico.NewCachedSource(opts.Indico.CacheDir, src,
			indico.WithMaxAge(opts.Indico.CacheMaxAge),
			indico.WithOffline(opts.Indico.Offline),
			indico.WithRefresh(opts.Indico.Refresh),
		)
		src = m.cache
	}

	var sinks []domain.Sink
	if opts.OutDir != "" {
		sinks = append(sinks, repo.NewFiles(opts.OutDir))
	}
	if deps.HasPG() {
		var hooks []repokit.BeginHook
		if opts.StatementTimeout > 0 {
			hooks = append(hooks, repokit.StatementTimeout(opts.StatementTimeout))
		}
		hooks = append(hooks, repokit.ApplicationName("qmtrends"))
		sql := repo.NewSQL(deps.PG, repo.NewPG(), hooks...)
		m.history = sql
		sinks = append(sinks, sql)
	}
	if deps.HasCH() {
		m.columnar = repo.NewColumnar(deps.CH)
		sinks = append(sinks, m.columnar)
	}

	m.svc = service.New(src, pack, service.Config{
		Workers:    opts.Workers,
		Threshold:  opts.Threshold,
		InstDBPath: opts.InstDBPath,
		SaveInstDB: opts.SaveInstDB,
	}, sinks...)
	m.ports = Ports{Runner: m.svc, Service: m.svc, History: m.history}

	deps.Log.Debug().Int("sinks", len(sinks)).Bool("cache", m.cache != nil).
		Bool("pg", deps.HasPG()).Bool("ch", deps.HasCH()).Msg("pipeline module wired")
	return m, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return "pipeline" }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Service is the wired pipeline service
func (m *Module) Service() *service.Service { return m.svc }

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// CacheStats reports talk cache counters; zero when caching is off
func (m *Module) CacheStats() indico.CacheStats {
	if m.cache == nil {
		return indico.CacheStats{}
	}
	return m.cache.Stats()
}

// Conferences loads the configured conference list and keeps the given years, all when none
func (m *Module) Conferences(years ...int) ([]talk.Conference, error) {
	confs, err := LoadConferences(m.opts.ConferencesFile)
	if err != nil {
		return nil, err
	}
	return SelectYears(confs, years)
}

// EnsureSchema creates the clickhouse stats table; a no-op without clickhouse
func (m *Module) EnsureSchema(ctx context.Context) error {
	if m.columnar == nil {
		return nil
	}
	return m.columnar.EnsureSchema(ctx)
}

// RecentRuns lists past runs from postgres
func (m *Module) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if m.history == nil {
		return nil, perr.InvalidArgf("runs: postgres is not configured, set CORE_PG_URL")
	}
	return m.history.RecentRuns(ctx, limit)
}
