package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
)

// Store implements scheduler.Repository and scheduler.TaskWriter over a
// single *sql.DB connection.
type Store struct {
	db *sql.DB
}

// DB returns the underlying connection, mainly for tests that want to
// inspect rows directly.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
