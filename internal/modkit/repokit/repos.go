// Package repokit lets service repos run against either the pool or an open transaction
package repokit

import (
	"context"

	"qmtrends/internal/platform/store"
)

// Store seams repos are written against
type (
	Queryer    = store.RowQuerier
	TxRunner   = store.TxRunner
	Rows       = store.Rows
	Row        = store.Row
	CommandTag = store.CommandTag
)

// WithTx is tx.Tx for callers that hold no Binder
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}

// InTx opens a transaction on tx and hands fn a repo bound to it.
// Any error from fn rolls the transaction back
func InTx[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(repo T) error) error {
	return WithTx(ctx, tx, func(q Queryer) error { return fn(MustBind(b, q)) })
}
