package sqlitestore

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireClusterMutex implements S3 over SQLite's upsert syntax.
func (s *Store) TryAcquireClusterMutex(ctx context.Context, name, holderID string, lease time.Duration, now time.Time) (bool, error) {
	lockUntil := now.Add(lease)
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO cluster_mutex (name, locked_by, locked_at, lock_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE
		SET locked_by = excluded.locked_by,
		    locked_at = excluded.locked_at,
		    lock_until = excluded.lock_until
		WHERE cluster_mutex.lock_until < ?`,
		name, holderID, formatTime(now), formatTime(lockUntil), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("acquire cluster mutex %s: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire cluster mutex %s: %w", name, err)
	}
	return n > 0, nil
}

// ReleaseClusterMutex releases a held mutex early, guarded by holderID
// still owning it.
func (s *Store) ReleaseClusterMutex(ctx context.Context, name, holderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cluster_mutex
		SET lock_until = locked_at
		WHERE name = ? AND locked_by = ?`,
		name, holderID)
	if err != nil {
		return fmt.Errorf("release cluster mutex %s: %w", name, err)
	}
	return nil
}
