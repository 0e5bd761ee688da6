package scheduler

import (
	"context"

	"github.com/taskscheduler/engine/internal/domain"
)

// Metrics is the engine's metrics contract for the two pipeline steps
// spec §4.3 calls out explicitly ("Record metric" at step 8c, "Record
// retry metric" at step 8d), owned by this package the same way Alerter
// is: the Executor never depends on a concrete metrics backend. A
// concrete implementation (internal/infrastructure/observability.Metrics)
// records these via the OTel MeterProvider wired in
// internal/infrastructure/observability.Init.
type Metrics interface {
	MaxRetriesExceeded(ctx context.Context, task *domain.Task)
	RetryScheduled(ctx context.Context, task *domain.Task)
}

// NoopMetrics discards every measurement; useful for tests and for
// deployments that run without a meter provider.
type NoopMetrics struct{}

func (NoopMetrics) MaxRetriesExceeded(context.Context, *domain.Task) {}
func (NoopMetrics) RetryScheduled(context.Context, *domain.Task)     {}
