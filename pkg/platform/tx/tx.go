// Package tx carries an open SQL transaction through a context so stores can
// join a transaction started by their caller.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// Querier is the subset of *sql.DB and *sql.Tx that stores issue statements on.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx stores tx in ctx. A nil tx leaves ctx unchanged.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, tx)
}

// From extracts the transaction stored by WithTx.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx, ok
}

// QuerierFrom returns the transaction in ctx, or db when there is none.
func QuerierFrom(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}
