package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

// DBTxKey carries the active transaction through the context so repositories
// can join an in-flight unit of work.
const DBTxKey contextKey = "db_tx"

// TxError wraps a failure to begin or commit a transaction. The work inside
// the transaction may have been valid; callers can retry on commit failures.
type TxError struct {
	Op  string // "begin" or "commit"
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// TxFromContext retrieves the active transaction from context, or nil when
// none is present.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// TxRunner is the signature services depend on to execute a unit of work in
// a transaction. It decouples services from the pool; tests substitute their
// own runner.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxRunner binds RunInTx to a pool.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return RunInTx(ctx, pool, fn)
	}
}

// RunInTx executes fn inside a single database transaction. The transaction
// is stored in the context passed to fn so that repositories pick it up via
// TxFromContext. The transaction is rolled back if fn returns an error or
// panics, and committed otherwise. If the context already carries a
// transaction, fn joins it and the outer caller owns commit/rollback.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return &TxError{Op: "begin", Err: err}
	}

	txCtx := context.WithValue(ctx, DBTxKey, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &TxError{Op: "commit", Err: err}
	}

	return nil
}
