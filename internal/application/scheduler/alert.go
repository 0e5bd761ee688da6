package scheduler

import (
	"context"

	"github.com/taskscheduler/engine/internal/domain"
)

// Alerter is the outbound alert contract from spec §4.6, owned by this
// package so the Executor never depends on a concrete transport. A
// concrete implementation (internal/alert.WebhookSink) posts to a
// chat-webhook; emission is always fire-and-forget from the Executor's
// point of view — the Executor calls the Alerter only after its commit has
// succeeded, and the Alerter methods return nothing.
type Alerter interface {
	MaxRetriesExceeded(ctx context.Context, task *domain.Task)
	TaskFailure(ctx context.Context, task *domain.Task, errMessage string)
	GenericError(ctx context.Context, title, body string, details map[string]any)
}

// NoopAlerter discards every alert; useful for tests and for deployments
// with alert_enabled=false.
type NoopAlerter struct{}

func (NoopAlerter) MaxRetriesExceeded(context.Context, *domain.Task)          {}
func (NoopAlerter) TaskFailure(context.Context, *domain.Task, string)         {}
func (NoopAlerter) GenericError(context.Context, string, string, map[string]any) {}
