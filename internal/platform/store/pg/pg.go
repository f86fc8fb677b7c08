// Package pg opens the Postgres pool behind the results sink
package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultAppName shows up in pg_stat_activity when the caller sets none
const defaultAppName = "qmtrends"

// Config configures the pool
type Config struct {
	URL      string
	AppName  string
	MaxConns int32
	SlowMs   int
}

// PG holds the pool and the optional query tracer
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL, applies the pool settings and mut, and builds the pool without pinging it
// an application_name already present in the DSN is kept
func Open(ctx context.Context, cfg Config, tracer QueryTracer, mut func(*pgxpool.Config)) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if _, set := pcfg.ConnConfig.RuntimeParams["application_name"]; !set {
		name := cfg.AppName
		if name == "" {
			name = defaultAppName
		}
		pcfg.ConnConfig.RuntimeParams["application_name"] = name
	}
	if mut != nil {
		mut(pcfg)
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// Close closes the pool; nil safe
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
