package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxFakeRow implements pgx.Row
type pgxFakeRow struct {
	scan func(dest ...any) error
}

func (r *pgxFakeRow) Scan(dest ...any) error {
	if r.scan != nil {
		return r.scan(dest...)
	}
	return nil
}

// pgxFakeRows implements pgx.Rows
type pgxFakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	idx    int
	err    error
	closed bool
	ct     pgconn.CommandTag
}

func newPgxFakeRows(cols []string, data [][]any) *pgxFakeRows {
	fds := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		// Name is a string in pgx/v5
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return &pgxFakeRows{fields: fds, data: data, idx: -1}
}

func (r *pgxFakeRows) Conn() *pgx.Conn { return nil }

func (r *pgxFakeRows) Close()                        { r.closed = true }
func (r *pgxFakeRows) Err() error                    { return r.err }
func (r *pgxFakeRows) CommandTag() pgconn.CommandTag { return r.ct }
func (r *pgxFakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return r.fields
}
func (r *pgxFakeRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.idx++
	return r.idx >= 0 && r.idx < len(r.data)
}
func (r *pgxFakeRows) RawValues() [][]byte { return nil }
func (r *pgxFakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("out of range")
	}
	return r.data[r.idx], nil
}
func (r *pgxFakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("scan out of range")
	}
	row := r.data[r.idx]
	if len(row) != len(dest) {
		return errors.New("dest len mismatch")
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || !dv.Elem().CanSet() {
			return errors.New("dest not pointer")
		}
		val := reflect.ValueOf(row[i])
		if val.IsValid() && val.Type().AssignableTo(dv.Elem().Type()) {
			dv.Elem().Set(val)
			continue
		}
		if val.IsValid() && val.Type().ConvertibleTo(dv.Elem().Type()) {
			dv.Elem().Set(val.Convert(dv.Elem().Type()))
			continue
		}
		return errors.New("type mismatch")
	}
	return nil
}

// pgxFakeTx implements pgx.Tx; only the statement and commit methods do anything
type pgxFakeTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row

	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *pgxFakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.execFn != nil {
		return f.execFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("OK"), nil
}
func (f *pgxFakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, sql, args...)
	}
	return newPgxFakeRows([]string{"n"}, [][]any{{1}}), nil
}
func (f *pgxFakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFn != nil {
		return f.queryRowFn(ctx, sql, args...)
	}
	return &pgxFakeRow{scan: func(dest ...any) error {
		if len(dest) > 0 {
			if p, ok := dest[0].(*int); ok {
				*p = 7
			}
		}
		return nil
	}}
}

// Unused pgx.Tx methods to satisfy interface
func (f *pgxFakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *pgxFakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *pgxFakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }
func (f *pgxFakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}
func (f *pgxFakeTx) Conn() *pgx.Conn { return nil }
func (f *pgxFakeTx) Commit(context.Context) error {
	f.committed = f.commitErr == nil
	return f.commitErr
}
func (f *pgxFakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}
func (f *pgxFakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return f, nil }

type recTracer struct{ events []pg.QueryEvent }

func (r *recTracer) OnQuery(_ context.Context, ev pg.QueryEvent) { r.events = append(r.events, ev) }

func TestRunTx_TracesEveryStatement(t *testing.T) {
	t.Parallel()

	tr := &recTracer{}
	tx := &pgxFakeTx{}
	err := runTx(context.Background(), tx, tr, 0, func(q RowQuerier) error {
		if _, err := q.Exec(context.Background(), "INSERT INTO runs VALUES ($1)", "r1"); err != nil {
			return err
		}
		n, err := Scalar[int](context.Background(), q, "SELECT count(*) FROM runs")
		if err != nil || n != 7 {
			t.Fatalf("Scalar = %d, %v", n, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("runTx: %v", err)
	}
	if len(tr.events) != 2 || tr.events[0].SQL != "INSERT INTO runs VALUES ($1)" {
		t.Fatalf("events = %+v", tr.events)
	}
	// slow threshold 0 marks everything slow
	if !tr.events[0].Slow {
		t.Fatalf("zero threshold should mark slow")
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed %v rolled back %v", tx.committed, tx.rolledBack)
	}
}

func TestRunTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tx := &pgxFakeTx{}
	err := runTx(context.Background(), tx, nil, -1, func(RowQuerier) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("committed %v rolled back %v", tx.committed, tx.rolledBack)
	}
}

func TestRunTx_CommitErrorIsDB(t *testing.T) {
	t.Parallel()

	tx := &pgxFakeTx{commitErr: errors.New("conn reset")}
	err := runTx(context.Background(), tx, nil, -1, func(RowQuerier) error { return nil })
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("want DB error, got %v", err)
	}
}

func TestTraced_QueryRowsAndColumns(t *testing.T) {
	t.Parallel()

	q := traced{db: &pgxFakeTx{
		queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
			return newPgxFakeRows([]string{"year", "country"}, [][]any{{2019, "Germany"}, {2019, "USA"}}), nil
		},
	}, slowUS: -1}

	type yc struct {
		Year    int
		Country string
	}
	got, err := Many(context.Background(), q, func(r Row) (yc, error) {
		var v yc
		return v, r.Scan(&v.Year, &v.Country)
	}, "SELECT year, country FROM resolved_talks")
	if err != nil {
		t.Fatalf("Many: %v", err)
	}
	if len(got) != 2 || got[1].Country != "USA" {
		t.Fatalf("got %+v", got)
	}

	rs, _ := q.Query(context.Background(), "SELECT 1")
	if cols := rs.Columns(); len(cols) != 2 || cols[0] != "year" {
		t.Fatalf("cols = %v", cols)
	}
}

func TestTag_RowsAffected(t *testing.T) {
	t.Parallel()

	tg := tag{pgconn.NewCommandTag("INSERT 0 3")}
	if tg.RowsAffected() != 3 || tg.String() != "INSERT 0 3" {
		t.Fatalf("tag = %q %d", tg.String(), tg.RowsAffected())
	}
}

func TestRunTx_RollbackSurvivesCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	tx := &pgxFakeTx{}
	err := runTx(ctx, tx, nil, -1, func(RowQuerier) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) || !tx.rolledBack {
		t.Fatalf("err = %v rolled back %v", err, tx.rolledBack)
	}
}

func TestSlowMicros(t *testing.T) {
	t.Parallel()
	for ms, want := range map[int]int64{-1: -1, 0: 0, 250: 250_000} {
		if got := slowMicros(ms); got != want {
			t.Fatalf("slowMicros(%d) = %d, want %d", ms, got, want)
		}
	}
}
