package pg

import (
	"context"
	"errors"
	"testing"

	"qmtrends/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

// capturePool swaps newPool for one that records the final config and returns a zero pool
func capturePool(t *testing.T) *pgxpool.Config {
	t.Helper()
	got := new(pgxpool.Config)
	testkit.Swap(t, &newPool, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		*got = *c
		return &pgxpool.Pool{}, nil // never closed, zero value
	})
	return got
}

func TestOpen_ParseError(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOpen_NewPoolError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("boom")
	})

	_, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/qm?sslmode=disable"}, nil, nil)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_AppliesSettings(t *testing.T) {
	testkit.Serial(t)

	tests := []struct {
		name    string
		cfg     Config
		wantApp string
		wantMax int32
	}{
		{"defaults", Config{URL: "postgres://u:p@h:5432/qm?sslmode=disable"}, "qmtrends", 0},
		{"app and max", Config{URL: "postgres://u:p@h:5432/qm", AppName: "qmtrends-run", MaxConns: 7}, "qmtrends-run", 7},
		{"dsn wins", Config{URL: "postgres://u:p@h:5432/qm?application_name=psql", AppName: "qmtrends"}, "psql", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := capturePool(t)
			p, err := Open(context.Background(), tt.cfg, nil, nil)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if app := got.ConnConfig.RuntimeParams["application_name"]; app != tt.wantApp {
				t.Fatalf("application_name = %q, want %q", app, tt.wantApp)
			}
			if tt.wantMax != 0 && got.MaxConns != tt.wantMax {
				t.Fatalf("MaxConns = %d, want %d", got.MaxConns, tt.wantMax)
			}
			if p.Pool == nil {
				t.Fatal("pool is nil")
			}
		})
	}
}

func TestOpen_MutatorRunsLast(t *testing.T) {
	testkit.Serial(t)
	got := capturePool(t)

	p, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/qm", MaxConns: 7, SlowMs: 250}, nil,
		func(pc *pgxpool.Config) { pc.MaxConns = 2 })
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.MaxConns != 2 || p.SlowMs != 250 {
		t.Fatalf("MaxConns = %d SlowMs = %d", got.MaxConns, p.SlowMs)
	}
}

func TestClose_NilSafe(t *testing.T) {
	t.Parallel()

	var p *PG
	p.Close()
	(&PG{}).Close()
}
