package config

import (
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
)

// SchedulerConfig holds the engine's tuning surface, spec §6.3's
// configuration table, as environment-loadable durations/ints. ToEngine
// converts it into scheduler.Config, applying the same defaults
// scheduler.Config.ApplyDefaults does for any field left at zero.
type SchedulerConfig struct {
	PollIntervalSeconds    int     `env:"SCHED_POLL_INTERVAL_SECONDS"`
	BatchSize              int     `env:"SCHED_BATCH_SIZE"`
	ExecutorPoolSize       int     `env:"SCHED_EXECUTOR_POOL_SIZE"`
	DefaultMaxRetries      int     `env:"SCHED_DEFAULT_MAX_RETRIES"`
	DefaultRetryDelayHours float64 `env:"SCHED_DEFAULT_RETRY_DELAY_HOURS"`
	LockDurationMinutes    int     `env:"SCHED_LOCK_DURATION_MINUTES"`
	StaleThresholdMinutes  int     `env:"SCHED_STALE_TASK_THRESHOLD_MINUTES"`
	StaleCheckIntervalSec  int     `env:"SCHED_STALE_CHECK_INTERVAL_SECONDS"`
	ShutdownGraceSeconds   int     `env:"SCHED_SHUTDOWN_GRACE_SECONDS"`
}

// ToEngine converts the environment-loaded surface into scheduler.Config,
// applying scheduler.DefaultConfig's fallbacks for anything left unset.
func (c SchedulerConfig) ToEngine() scheduler.Config {
	cfg := scheduler.Config{
		PollInterval:       time.Duration(c.PollIntervalSeconds) * time.Second,
		BatchSize:          c.BatchSize,
		ExecutorPoolSize:   c.ExecutorPoolSize,
		DefaultMaxRetries:  c.DefaultMaxRetries,
		DefaultRetryDelay:  c.DefaultRetryDelayHours,
		LockDuration:       time.Duration(c.LockDurationMinutes) * time.Minute,
		StaleThreshold:     time.Duration(c.StaleThresholdMinutes) * time.Minute,
		StaleCheckInterval: time.Duration(c.StaleCheckIntervalSec) * time.Second,
		ShutdownGrace:      time.Duration(c.ShutdownGraceSeconds) * time.Second,
	}
	cfg.ApplyDefaults()
	return cfg
}
