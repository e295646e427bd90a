package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
}

// SQLSTATEs raised when concurrent transactions collide.
const (
	SerializationFailure = "40001"
	DeadlockDetected     = "40P01"
)

// ErrConcurrentUpdate reports a transaction aborted by a concurrent writer.
// It matches shared.ErrConflict so callers see a retryable 409.
var ErrConcurrentUpdate = fmt.Errorf("%w: concurrent update, retry the request", shared.ErrConflict)

// ReadCommitted suits transactions whose writes are guarded row by row, such as
// conditional stock decrements, which must re-check their predicate after a lock wait.
var ReadCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// WithTxOptions executes fn within a transaction started with opts.
func WithTxOptions(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return translateTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return translateTxError(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// IsConcurrencyFailure reports serialization failures and deadlocks.
func IsConcurrencyFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == SerializationFailure || pgErr.Code == DeadlockDetected
}

// concurrentUpdateError shows clients ErrConcurrentUpdate and keeps the
// driver error reachable for logs and errors.As.
type concurrentUpdateError struct {
	cause error
}

func (e *concurrentUpdateError) Error() string { return ErrConcurrentUpdate.Error() }

func (e *concurrentUpdateError) Unwrap() []error { return []error{ErrConcurrentUpdate, e.cause} }

func translateTxError(err error) error {
	if IsConcurrencyFailure(err) {
		return &concurrentUpdateError{cause: err}
	}
	return err
}
