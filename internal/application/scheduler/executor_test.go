package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	task     *domain.Task
	claimErr error
	commits  []CommitOutcome
}

func (r *fakeRepo) FetchReadyTasks(context.Context, FetchParams) ([]*domain.Task, error) {
	return nil, nil
}

func (r *fakeRepo) ClaimTask(_ context.Context, _ domain.TaskID, version int64, instanceID string, lockDuration time.Duration, now time.Time) (*ClaimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	if version != r.task.Version {
		return &ClaimResult{Task: nil}, nil
	}
	r.task.Status = domain.StatusProcessing
	r.task.LockedBy = &instanceID
	startedAt := now
	r.task.StartedAt = &startedAt
	r.task.Version++
	cp := *r.task
	return &ClaimResult{Task: &cp}, nil
}

func (r *fakeRepo) GetTask(_ context.Context, _ domain.TaskID) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.task, nil
}

func (r *fakeRepo) Commit(_ context.Context, _ domain.TaskID, outcome CommitOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, outcome)
	r.task.Status = outcome.NewStatus
	r.task.RetryCount = outcome.RetryCount
	if outcome.ClearLock {
		r.task.LockedBy = nil
	}
	return nil
}

func (r *fakeRepo) ReapStale(context.Context, time.Duration, time.Time) (int, error) { return 0, nil }

func (r *fakeRepo) TryAcquireClusterMutex(context.Context, string, string, time.Duration, time.Time) (bool, error) {
	return true, nil
}

func (r *fakeRepo) ReleaseClusterMutex(context.Context, string, string) error { return nil }

func (r *fakeRepo) SubscribeDispatchRequests(context.Context) (<-chan domain.TaskID, error) {
	return make(chan domain.TaskID), nil
}

var _ Repository = (*fakeRepo)(nil)

type scriptedHandler struct {
	taskType domain.TaskType
	execute  func(context.Context, *domain.Task) (Result, error)
	validate func(*domain.Task) error
}

func (h scriptedHandler) TaskType() domain.TaskType { return h.taskType }

func (h scriptedHandler) Validate(task *domain.Task) error {
	if h.validate != nil {
		return h.validate(task)
	}
	return nil
}

func (h scriptedHandler) Execute(ctx context.Context, task *domain.Task) (Result, error) {
	return h.execute(ctx, task)
}

func (h scriptedHandler) NextRetryDelay(*domain.Task, float64) time.Duration {
	return time.Hour
}

func newTestTask(taskType domain.TaskType, status domain.Status) *domain.Task {
	return &domain.Task{
		ID:            "t1",
		Type:          taskType,
		Priority:      domain.PriorityNormal,
		Status:        status,
		Payload:       json.RawMessage(`{}`),
		Version:       1,
		ScheduledTime: time.Now().UTC(),
	}
}

func TestExecutor_Run_Success(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{
		taskType: domain.TaskTypeCustom,
		execute: func(context.Context, *domain.Task) (Result, error) {
			return Result{Success: true}, nil
		},
	})
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", DefaultConfig())

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusCompleted, repo.commits[0].NewStatus)
}

func TestExecutor_Run_LostClaimRace(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	task.Version = 5
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{taskType: domain.TaskTypeCustom})
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", DefaultConfig())

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, repo.commits)
}

func TestExecutor_Run_NoHandlerRegisteredIsPermanentFailure(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	repo := &fakeRepo{task: task}
	registry := NewRegistry()
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", DefaultConfig())

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusDeadLetter, repo.commits[0].NewStatus)
}

func TestExecutor_Run_ValidationErrorIsPermanentFailure(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{
		taskType: domain.TaskTypeCustom,
		validate: func(*domain.Task) error { return assert.AnError },
	})
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", DefaultConfig())

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusDeadLetter, repo.commits[0].NewStatus)
}

func TestExecutor_Run_RetryableFailureSchedulesRetry(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{
		taskType: domain.TaskTypeCustom,
		execute: func(context.Context, *domain.Task) (Result, error) {
			return Result{Success: false, Retryable: true, ErrorType: "TRANSIENT", ErrorMessage: "boom"}, nil
		},
	})
	cfg := DefaultConfig()
	cfg.DefaultMaxRetries = 5
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", cfg)

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusRetryPending, repo.commits[0].NewStatus)
	assert.Equal(t, 1, repo.commits[0].RetryCount)
}

func TestExecutor_Run_RetryableFailureExhaustsToMaxRetriesExceeded(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	task.RetryCount = 4
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{
		taskType: domain.TaskTypeCustom,
		execute: func(context.Context, *domain.Task) (Result, error) {
			return Result{Success: false, Retryable: true, ErrorType: "TRANSIENT", ErrorMessage: "boom"}, nil
		},
	})
	cfg := DefaultConfig()
	cfg.DefaultMaxRetries = 5
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", cfg)

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusMaxRetriesExceeded, repo.commits[0].NewStatus)
}

func TestExecutor_Run_PanicIsRecoveredAsRetryable(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{
		taskType: domain.TaskTypeCustom,
		execute: func(context.Context, *domain.Task) (Result, error) {
			panic("handler exploded")
		},
	})
	cfg := DefaultConfig()
	cfg.DefaultMaxRetries = 5
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", cfg)

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusRetryPending, repo.commits[0].NewStatus)
}

func TestExecutor_Run_ExpiredTaskIsCommittedExpired(t *testing.T) {
	task := newTestTask(domain.TaskTypeCustom, domain.StatusPending)
	past := time.Now().UTC().Add(-time.Hour)
	task.ExpiresAt = &past
	repo := &fakeRepo{task: task}
	registry := NewRegistry(scriptedHandler{taskType: domain.TaskTypeCustom})
	executor := NewExecutor(repo, registry, NoopAlerter{}, NoopMetrics{}, "inst-1", DefaultConfig())

	err := executor.Run(context.Background(), task.ID, 1)
	require.NoError(t, err)
	require.Len(t, repo.commits, 1)
	assert.Equal(t, domain.StatusExpired, repo.commits[0].NewStatus)
}
