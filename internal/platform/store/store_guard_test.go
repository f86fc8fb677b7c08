package store

import (
	"context"
	"errors"
	"testing"

	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/testkit"
)

// noPingTx is a TxRunner without Ping; Guard skips it
type noPingTx struct{}

func (noPingTx) Tx(context.Context, func(q RowQuerier) error) error { return nil }
func (noPingTx) Exec(context.Context, string, ...any) (CommandTag, error) {
	return nil, nil
}
func (noPingTx) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (noPingTx) QueryRow(context.Context, string, ...any) Row        { return nil }

type pingTx struct {
	noPingTx
	err error
}

func (p pingTx) Ping(context.Context) error { return p.err }

func TestGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		store   *Store
		wantErr []string
	}{
		{"no backends", &Store{}, nil},
		{"pg without ping", &Store{PG: noPingTx{}}, nil},
		{"pg ok", &Store{PG: pingTx{}}, nil},
		{"pg down", &Store{PG: pingTx{err: errors.New("boom")}}, []string{"pg: boom"}},
		{"ch down", &Store{
			PG: pingTx{},
			CH: newCHAdapter(&fakeCH{pingErr: errors.New("refused")}),
		}, []string{"ch: refused"}},
		{"both down", &Store{
			PG: pingTx{err: errors.New("boom")},
			CH: newCHAdapter(&fakeCH{pingErr: errors.New("refused")}),
		}, []string{"pg: boom", "ch: refused"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.store.Guard(context.Background())
			if len(tc.wantErr) == 0 {
				if err != nil {
					t.Fatalf("Guard: %v", err)
				}
				return
			}
			testkit.MustCode(t, err, perr.ErrorCodeUnavailable)
			for _, w := range tc.wantErr {
				testkit.MustContain(t, err.Error(), w)
			}
		})
	}
}

func TestGuard_NilStore(t *testing.T) {
	t.Parallel()
	var s *Store
	testkit.MustCode(t, s.Guard(context.Background()), perr.ErrorCodeInvalidArgument)
}
