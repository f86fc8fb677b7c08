package repokit

import (
	"context"
	"errors"
	"testing"
	"time"

	"qmtrends/internal/platform/store"
	"qmtrends/internal/platform/testkit"
)

// fakeQ records every Exec
type fakeQ struct {
	execs   []string
	args    [][]any
	execErr error
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	return nil, f.execErr
}
func (f *fakeQ) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (f *fakeQ) QueryRow(context.Context, string, ...any) store.Row      { return nil }

// fakeTx hands its q to fn and returns err after fn succeeds
type fakeTx struct {
	fakeQ
	q      *fakeQ
	err    error
	called int
}

func (f *fakeTx) Tx(_ context.Context, fn func(q Queryer) error) error {
	f.called++
	if err := fn(f.q); err != nil {
		return err
	}
	return f.err
}

func TestWithTx(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	txErr := errors.New("commit")
	tests := []struct {
		name  string
		txErr error
		fnErr error
		want  error
	}{
		{"ok", nil, nil, nil},
		{"fn error", nil, boom, boom},
		{"tx error", txErr, nil, txErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ftx := &fakeTx{q: &fakeQ{}, err: tc.txErr}
			err := WithTx(context.Background(), ftx, func(q Queryer) error {
				if q != ftx.q {
					t.Fatalf("fn got a different Queryer")
				}
				return tc.fnErr
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if ftx.called != 1 {
				t.Fatalf("Tx called %d times", ftx.called)
			}
		})
	}
}

type runsRepo struct{ q Queryer }

func TestInTx_BindsRepoToTxQueryer(t *testing.T) {
	t.Parallel()

	ftx := &fakeTx{q: &fakeQ{}}
	b := BindFunc[runsRepo](func(q Queryer) runsRepo { return runsRepo{q: q} })

	var got runsRepo
	if err := InTx(context.Background(), ftx, b, func(r runsRepo) error {
		got = r
		return nil
	}); err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if got.q != ftx.q {
		t.Fatalf("repo bound to wrong Queryer")
	}
}

func TestMustBind_NilQueryerPanics(t *testing.T) {
	t.Parallel()
	b := BindFunc[runsRepo](func(q Queryer) runsRepo { return runsRepo{q: q} })
	testkit.MustPanic(t, func() { _ = MustBind[runsRepo](b, nil) })
}

func TestWithBeginHooks_RunInOrderBeforeFn(t *testing.T) {
	t.Parallel()

	q := &fakeQ{}
	tx := WithBeginHooks(&fakeTx{q: q},
		StatementTimeout(1500*time.Millisecond),
		ApplicationName("qmtrends-sink"),
	)
	err := tx.Tx(context.Background(), func(q Queryer) error {
		_, err := q.Exec(context.Background(), "INSERT INTO runs DEFAULT VALUES")
		return err
	})
	if err != nil {
		t.Fatalf("Tx: %v", err)
	}
	want := []string{
		"SET LOCAL statement_timeout = 1500",
		"SELECT set_config('application_name', $1, true)",
		"INSERT INTO runs DEFAULT VALUES",
	}
	if len(q.execs) != len(want) {
		t.Fatalf("execs = %q", q.execs)
	}
	for i := range want {
		if q.execs[i] != want[i] {
			t.Fatalf("exec[%d] = %q, want %q", i, q.execs[i], want[i])
		}
	}
	if q.args[1][0] != "qmtrends-sink" {
		t.Fatalf("application_name arg = %v", q.args[1])
	}
}

func TestWithBeginHooks_HookErrorSkipsFn(t *testing.T) {
	t.Parallel()

	boom := errors.New("denied")
	q := &fakeQ{execErr: boom}
	tx := WithBeginHooks(&fakeTx{q: q}, StatementTimeout(time.Second))

	ran := false
	err := tx.Tx(context.Background(), func(Queryer) error { ran = true; return nil })
	if !errors.Is(err, boom) || ran {
		t.Fatalf("err = %v ran = %v", err, ran)
	}
}

func TestWithBeginHooks_ZeroValuesAreNoops(t *testing.T) {
	t.Parallel()

	inner := &fakeTx{q: &fakeQ{}}
	if WithBeginHooks(inner) != TxRunner(inner) {
		t.Fatalf("no hooks should return inner")
	}
	q := &fakeQ{}
	tx := WithBeginHooks(&fakeTx{q: q}, StatementTimeout(0), ApplicationName(""))
	if err := tx.Tx(context.Background(), func(Queryer) error { return nil }); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if len(q.execs) != 0 {
		t.Fatalf("execs = %q", q.execs)
	}
}
