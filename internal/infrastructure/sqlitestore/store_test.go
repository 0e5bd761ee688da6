package sqlitestore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateAndGetTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &domain.Task{
		Type:            domain.TaskTypeOrderCancel,
		Priority:        domain.PriorityNormal,
		ReferenceID:     "order-1",
		Status:          domain.StatusPending,
		Payload:         json.RawMessage(`{"order_id":"ord-1"}`),
		ScheduledTime:   time.Now().UTC(),
		MaxRetries:      nil,
		RetryDelayHours: nil,
	}

	created, existed, err := store.CreateTask(ctx, task, domain.DuplicatePolicyReject)
	require.NoError(t, err)
	require.False(t, existed)
	require.NotEmpty(t, created.ID)

	fetched, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "order-1", fetched.ReferenceID)
	require.Equal(t, domain.StatusPending, fetched.Status)
}

func TestStore_CreateTask_DuplicateRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &domain.Task{
		Type:          domain.TaskTypeOrderCancel,
		Priority:      domain.PriorityNormal,
		ReferenceID:   "order-dup",
		Status:        domain.StatusPending,
		Payload:       json.RawMessage(`{}`),
		ScheduledTime: time.Now().UTC(),
	}

	_, _, err := store.CreateTask(ctx, task, domain.DuplicatePolicyReject)
	require.NoError(t, err)

	dup := &domain.Task{
		Type:          domain.TaskTypeOrderCancel,
		Priority:      domain.PriorityNormal,
		ReferenceID:   "order-dup",
		Status:        domain.StatusPending,
		Payload:       json.RawMessage(`{}`),
		ScheduledTime: time.Now().UTC(),
	}
	_, _, err = store.CreateTask(ctx, dup, domain.DuplicatePolicyReject)
	require.ErrorIs(t, err, domain.ErrDuplicateTask)
}

func TestStore_CreateTask_DuplicateReturnsExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task := &domain.Task{
		Type:          domain.TaskTypeOrderCancel,
		Priority:      domain.PriorityNormal,
		ReferenceID:   "order-dup2",
		Status:        domain.StatusPending,
		Payload:       json.RawMessage(`{}`),
		ScheduledTime: time.Now().UTC(),
	}
	first, _, err := store.CreateTask(ctx, task, domain.DuplicatePolicyReturnExisting)
	require.NoError(t, err)

	dup := &domain.Task{
		Type:          domain.TaskTypeOrderCancel,
		Priority:      domain.PriorityNormal,
		ReferenceID:   "order-dup2",
		Status:        domain.StatusPending,
		Payload:       json.RawMessage(`{}`),
		ScheduledTime: time.Now().UTC(),
	}
	second, existed, err := store.CreateTask(ctx, dup, domain.DuplicatePolicyReturnExisting)
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, first.ID, second.ID)
}

func TestStore_ClaimTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	task := &domain.Task{
		Type:          domain.TaskTypeCustom,
		Priority:      domain.PriorityNormal,
		ReferenceID:   "claim-1",
		Status:        domain.StatusPending,
		Payload:       json.RawMessage(`{}`),
		ScheduledTime: now,
	}
	created, _, err := store.CreateTask(ctx, task, domain.DuplicatePolicyReject)
	require.NoError(t, err)

	result, err := store.ClaimTask(ctx, created.ID, created.Version, "worker-1", 30*time.Minute, now)
	require.NoError(t, err)
	require.NotNil(t, result.Task)
	require.Equal(t, domain.StatusProcessing, result.Task.Status)

	// A second claim attempt against the stale version loses the race.
	lost, err := store.ClaimTask(ctx, created.ID, created.Version, "worker-2", 30*time.Minute, now)
	require.NoError(t, err)
	require.Nil(t, lost.Task)
}

func TestStore_FetchReadyTasks_ExcludesExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	expired := &domain.Task{
		Type: domain.TaskTypeCustom, Priority: domain.PriorityNormal, ReferenceID: "expired-1",
		Status: domain.StatusPending, Payload: json.RawMessage(`{}`),
		ScheduledTime: now.Add(-time.Minute), ExpiresAt: &past,
	}
	ready := &domain.Task{
		Type: domain.TaskTypeCustom, Priority: domain.PriorityNormal, ReferenceID: "ready-1",
		Status: domain.StatusPending, Payload: json.RawMessage(`{}`),
		ScheduledTime: now.Add(-time.Minute), ExpiresAt: &future,
	}
	_, _, err := store.CreateTask(ctx, expired, domain.DuplicatePolicyReject)
	require.NoError(t, err)
	_, _, err = store.CreateTask(ctx, ready, domain.DuplicatePolicyReject)
	require.NoError(t, err)

	tasks, err := store.FetchReadyTasks(ctx, scheduler.FetchParams{Now: now, BatchSize: 10})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "ready-1", tasks[0].ReferenceID)
}

func TestStore_SearchTasks_FiltersByPriority(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	high := &domain.Task{
		Type: domain.TaskTypeCustom, Priority: domain.PriorityHigh, ReferenceID: "p-high",
		Status: domain.StatusPending, Payload: json.RawMessage(`{}`), ScheduledTime: time.Now().UTC(),
	}
	normal := &domain.Task{
		Type: domain.TaskTypeCustom, Priority: domain.PriorityNormal, ReferenceID: "p-normal",
		Status: domain.StatusPending, Payload: json.RawMessage(`{}`), ScheduledTime: time.Now().UTC(),
	}
	_, _, err := store.CreateTask(ctx, high, domain.DuplicatePolicyReject)
	require.NoError(t, err)
	_, _, err = store.CreateTask(ctx, normal, domain.DuplicatePolicyReject)
	require.NoError(t, err)

	priority := domain.PriorityHigh
	results, err := store.SearchTasks(ctx, scheduler.SearchParams{Priority: &priority})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "p-high", results[0].ReferenceID)
}

func TestStore_ClusterMutex_ExclusiveAcquisition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acquired, err := store.TryAcquireClusterMutex(ctx, domain.MutexTaskPolling, "worker-1", time.Minute, now)
	require.NoError(t, err)
	require.True(t, acquired)

	blocked, err := store.TryAcquireClusterMutex(ctx, domain.MutexTaskPolling, "worker-2", time.Minute, now)
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, store.ReleaseClusterMutex(ctx, domain.MutexTaskPolling, "worker-1"))

	// Release sets lock_until back to the original acquisition time, so a
	// reacquisition attempt must observe a strictly later "now" to see the
	// lease as expired (matches postgres.Store's identical comparison).
	later := now.Add(time.Second)
	reacquired, err := store.TryAcquireClusterMutex(ctx, domain.MutexTaskPolling, "worker-2", time.Minute, later)
	require.NoError(t, err)
	require.True(t, reacquired)
}
