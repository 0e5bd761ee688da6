package handler

import (
	"context"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// Custom is a pass-through handler for domain.TaskTypeCustom: it always
// succeeds without calling any upstream, so callers can exercise the
// lifecycle/retry machinery in local composition or tests without a real
// external dependency (spec §4.4).
type Custom struct{}

func NewCustom() *Custom { return &Custom{} }

func (h *Custom) TaskType() domain.TaskType { return domain.TaskTypeCustom }

func (h *Custom) Validate(task *domain.Task) error { return nil }

func (h *Custom) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	return scheduler.Result{Success: true, ResponsePayload: task.Payload}, nil
}

func (h *Custom) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.DefaultNextRetryDelay(task.EffectiveRetryDelayHours(defaultDelayHours))
}
