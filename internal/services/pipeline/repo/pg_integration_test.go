//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"qmtrends/internal/modkit/repokit"
	"qmtrends/internal/platform/store"
	"qmtrends/internal/platform/store/pg"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "qmtrends",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/qmtrends?sslmode=disable", host, port.Port())
}

func TestSQLSink_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	m, err := pg.NewMigrator(dsn, Migrations, MigrationsDir, nil)
	if err != nil {
		t.Fatalf("NewMigrator: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	if err := m.Up(); err != nil {
		t.Fatalf("Up: %v", err)
	}

	st, err := store.Open(ctx, store.Config{
		AppName: "qmtrends-repo-integration",
		PG:      store.PGConfig{Enabled: true, URL: dsn, MaxConns: 2},
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(ctx) })

	res := sampleResult()
	sink := NewSQL(st.PG, nil, repokit.StatementTimeout(10*time.Second), repokit.ApplicationName("qmtrends-sink"))
	if err := sink.Write(ctx, res); err != nil {
		t.Fatalf("Write: %v", err)
	}

	n, err := store.Scalar[int64](ctx, st.PG, `SELECT count(*) FROM resolved_talks WHERE run_id = $1`, res.Run.ID)
	if err != nil || n != int64(len(res.Talks)) {
		t.Fatalf("resolved_talks = %d err %v", n, err)
	}
	src, err := store.Scalar[int32](ctx, st.PG, `SELECT source_year FROM resolved_talks WHERE run_id = $1 AND ordinal = 1`, res.Run.ID)
	if err != nil || src != 2017 {
		t.Fatalf("source_year = %d err %v", src, err)
	}

	// run ids are unique, a second write of the same run fails as a duplicate
	if err := sink.Write(ctx, res); err == nil {
		t.Fatalf("duplicate run accepted")
	}
}
