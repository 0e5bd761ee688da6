package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskscheduler/engine/internal/application/scheduler"
)

// Store implements scheduler.Repository and scheduler.TaskWriter over a
// PostgreSQL pgxpool.Pool, adapted from the teacher's
// internal/infrastructure/persistence/postgres/store.go. Unlike the
// teacher's store, queries here are written by hand rather than through a
// generated sqlcgen.Queries wrapper, since no query generator accompanied
// this domain in the retrieved pack (see DESIGN.md).
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ scheduler.Repository = (*Store)(nil)
	_ scheduler.TaskWriter = (*Store)(nil)
)

// NewStoreFromPool wraps an already-opened pool; used by tests and by
// callers that manage the pool's lifetime themselves.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool for callers needing raw
// access (health checks, migrations tooling).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// withTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise, mirroring the teacher's executeInTransaction.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed", "panic", p, "rollback_error", rbErr)
			}
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed", "original_error", err, "rollback_error", rbErr)
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
