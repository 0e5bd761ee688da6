package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/domain"
)

type stubHandler struct {
	taskType domain.TaskType
}

func (h stubHandler) TaskType() domain.TaskType { return h.taskType }
func (h stubHandler) Validate(*domain.Task) error { return nil }
func (h stubHandler) Execute(context.Context, *domain.Task) (Result, error) {
	return Result{Success: true}, nil
}
func (h stubHandler) NextRetryDelay(*domain.Task, float64) time.Duration { return 0 }

func TestRegistry_LookupFound(t *testing.T) {
	r := NewRegistry(
		stubHandler{taskType: domain.TaskTypeOrderCancel},
		stubHandler{taskType: domain.TaskTypeCustom},
	)

	h, ok := r.Lookup(domain.TaskTypeOrderCancel)
	require.True(t, ok)
	assert.Equal(t, domain.TaskTypeOrderCancel, h.TaskType())
}

func TestRegistry_LookupMissing(t *testing.T) {
	r := NewRegistry(stubHandler{taskType: domain.TaskTypeCustom})

	_, ok := r.Lookup(domain.TaskTypeOrderCancel)
	assert.False(t, ok)
}

func TestNoopAlerter_NeverPanics(t *testing.T) {
	var a Alerter = NoopAlerter{}
	task := &domain.Task{}
	assert.NotPanics(t, func() {
		a.MaxRetriesExceeded(context.Background(), task)
		a.TaskFailure(context.Background(), task, "boom")
		a.GenericError(context.Background(), "title", "body", nil)
	})
}
