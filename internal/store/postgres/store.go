// Package postgres is the pgx-backed core.Store. Stock keys, orders and sequence
// counters are serialized by row locks taken inside one database transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warehouse-ledger/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	_ core.Store      = (*Store)(nil)
	_ core.Catalog    = (*Store)(nil)
	_ core.Facilities = (*Store)(nil)
	_ core.Tx         = (*tx)(nil)
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
	log        *zap.Logger
}

// New wraps pool. A unit of work that fails with a serialization failure or deadlock
// is retried up to maxRetries more times before surfacing *core.ConcurrencyConflictError.
func New(pool *pgxpool.Pool, maxRetries int, log *zap.Logger) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, maxRetries: maxRetries, log: log}
}

func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	attempts := s.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.attempt(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		lastErr = err
		s.log.Debug("retrying unit of work after conflict", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 15 * time.Millisecond):
		}
	}
	return &core.ConcurrencyConflictError{Op: "transaction", Attempts: attempts, Err: lastErr}
}

func (s *Store) attempt(ctx context.Context, fn func(tx core.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer pgTx.Rollback(context.WithoutCancel(ctx))

	if err := fn(&tx{q: pgTx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pgTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}
