package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// Reaper implements spec §4.5: periodically, under the cluster mutex
// MutexStaleTaskCleanup, it resets tasks whose lock has gone stale without
// completion (a crashed replica) back to RETRY_PENDING so the attempt is
// explicitly re-counted and the incident is observable via last_error.
type Reaper struct {
	repo       Repository
	instanceID string
	cfg        Config
}

// NewReaper builds a Reaper.
func NewReaper(repo Repository, instanceID string, cfg Config) *Reaper {
	return &Reaper{repo: repo, instanceID: instanceID, cfg: cfg}
}

// Run blocks, ticking every cfg.StaleCheckInterval, until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	now := time.Now().UTC()
	acquired, err := r.repo.TryAcquireClusterMutex(ctx, domain.MutexStaleTaskCleanup, r.instanceID, r.cfg.ClusterMutexLease, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire stale-cleanup mutex", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := r.repo.ReleaseClusterMutex(ctx, domain.MutexStaleTaskCleanup, r.instanceID); err != nil {
			slog.WarnContext(ctx, "failed to release stale-cleanup mutex", "error", err)
		}
	}()

	reaped, err := r.repo.ReapStale(ctx, r.cfg.StaleThreshold, now)
	if err != nil {
		slog.ErrorContext(ctx, "stale-lock reap failed", "error", err)
		return
	}
	if reaped > 0 {
		slog.InfoContext(ctx, "reaped stale locked tasks", "count", reaped)
	}
}
