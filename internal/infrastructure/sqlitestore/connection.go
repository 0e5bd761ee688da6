// Package sqlitestore is an alternate database/sql-based Repository/
// TaskWriter implementation over modernc.org/sqlite, for local development
// and tests where standing up PostgreSQL is unwanted. Adapted from the
// teacher's dual-driver goose wiring in internal/storage/sql/connection.go:
// same embedded-migrations-over-goose pattern, a SQLite dialect instead of
// Postgres.
//
// SQLite has no row-level SKIP LOCKED: every write transaction is
// serialized by the engine itself (database/sql's default pool still
// allows concurrent readers, but this package opens with a single
// connection so FetchReadyTasks/ClaimTask/Commit/ReapStale interleave
// safely without a second writer stepping on an in-flight one). This
// store is not meant to back a multi-replica deployment; its fetch/claim
// behavior is correct for a single-process engine.
package sqlitestore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/taskscheduler/engine/internal/application/scheduler"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	_ scheduler.Repository = (*Store)(nil)
	_ scheduler.TaskWriter = (*Store)(nil)
)

// Config configures the SQLite-backed store.
type Config struct {
	// Path is a filesystem path, or ":memory:" for an ephemeral database.
	Path string
}

// NewStore opens a SQLite database at cfg.Path, runs migrations, and
// returns a ready Store. A single connection backs the pool: SQLite
// rejects concurrent writers at the file level, and serializing through
// one *sql.DB connection makes that explicit rather than surfacing as
// sporadic SQLITE_BUSY errors.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run sqlite migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
