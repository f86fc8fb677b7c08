package pg

import (
	"errors"
	"io/fs"
	"strings"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator applies embedded SQL migrations with golang-migrate
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator reads migrations from dir inside fsys and targets the database at dsn
// postgres:// and postgresql:// DSNs are accepted as-is
func NewMigrator(dsn string, fsys fs.FS, dir string, log *logger.Logger) (*Migrator, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read migrations from %s", dir)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(dsn))
	if err != nil {
		_ = src.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "connect migrator")
	}
	if log != nil {
		m.Log = migrateLog{l: log}
	}
	return &Migrator{m: m}, nil
}

// Up applies every pending migration; no pending migrations is not an error
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return perr.Wrap(err, perr.ErrorCodeDB, "migrate up")
	}
	return nil
}

// Down rolls back steps migrations
func (g *Migrator) Down(steps int) error {
	if steps <= 0 {
		return perr.InvalidArgf("steps must be positive, got %d", steps)
	}
	if err := g.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return perr.Wrapf(err, perr.ErrorCodeDB, "migrate down %d", steps)
	}
	return nil
}

// Version reports the applied version, 0 when nothing has run
func (g *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, perr.Wrap(err, perr.ErrorCodeDB, "migrate version")
	}
	return version, dirty, nil
}

// Close releases the source and database handles
func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateURL rewrites a libpq style DSN to the pgx5 scheme golang-migrate dispatches on
func MigrateURL(dsn string) string {
	for _, p := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, p) {
			return "pgx5://" + strings.TrimPrefix(dsn, p)
		}
	}
	return dsn
}

// migrateLog routes golang-migrate output through zerolog at debug
type migrateLog struct{ l *logger.Logger }

func (m migrateLog) Printf(format string, v ...any) {
	m.l.Debug().Msgf(strings.TrimRight(format, "\n"), v...)
}

func (m migrateLog) Verbose() bool { return false }
