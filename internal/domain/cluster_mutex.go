package domain

import "time"

// Well-known cluster mutex names used to guarantee a cluster-wide singleton
// runner for the Poller and the Stale-Lock Reaper (spec §4.2, §4.5).
const (
	MutexTaskPolling      = "taskPollingJob"
	MutexStaleTaskCleanup = "staleTaskCleanup"
)

// ClusterMutex is a named row used as a distributed binary semaphore with a
// lease. Acquisition is an upsert-with-conditional-expiry on (name,
// lock_until), implemented by the store (spec §4.1 S3).
type ClusterMutex struct {
	Name      string
	LockedBy  string
	LockedAt  time.Time
	LockUntil time.Time
}
