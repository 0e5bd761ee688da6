package postgres

import (
	"context"
	"fmt"
	"time"
)

// TryAcquireClusterMutex implements S3: an upsert-with-conditional-expiry
// on (name, lock_until). The ON CONFLICT clause only overwrites the row
// when the existing lease has expired, so a live holder's lease is never
// stolen; the affected-row count distinguishes "we now hold it" from
// "someone else holds it" without a separate SELECT (spec §4.1, §4.2, §4.5
// — Poller and Reaper each call this once per tick using
// domain.MutexTaskPolling / domain.MutexStaleTaskCleanup as name).
func (s *Store) TryAcquireClusterMutex(ctx context.Context, name, holderID string, lease time.Duration, now time.Time) (bool, error) {
	lockUntil := now.Add(lease)
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO cluster_mutex (name, locked_by, locked_at, lock_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET locked_by = EXCLUDED.locked_by,
		    locked_at = EXCLUDED.locked_at,
		    lock_until = EXCLUDED.lock_until
		WHERE cluster_mutex.lock_until < $3`,
		name, holderID, now, lockUntil)
	if err != nil {
		return false, fmt.Errorf("acquire cluster mutex %s: %w", name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseClusterMutex releases a held mutex early by forcing its lease to
// expire, but only when holderID still owns it — a defensive guard against
// releasing a lease that has since rolled over to another replica.
func (s *Store) ReleaseClusterMutex(ctx context.Context, name, holderID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE cluster_mutex
		SET lock_until = locked_at
		WHERE name = $1 AND locked_by = $2`,
		name, holderID)
	if err != nil {
		return fmt.Errorf("release cluster mutex %s: %w", name, err)
	}
	return nil
}
