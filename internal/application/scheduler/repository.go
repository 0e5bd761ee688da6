// Package scheduler implements the engine's core: the Poller, the Executor,
// the Handler registry and contract, the Stale-Lock Reaper, and the retry
// and failure-classification policy that binds them together. It depends
// only on the Repository interface below, never on a concrete store, per
// the Dependency Inversion / Interface Segregation convention the teacher
// uses for its own worker package: the interface is owned by the consumer,
// not by the storage provider.
package scheduler

import (
	"context"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// FetchParams narrows the Poller's batch fetch (spec §4.2).
type FetchParams struct {
	Now       time.Time
	BatchSize int
}

// ClaimResult is returned by ClaimTask: a nil Task with a nil error means
// the race was lost (some other replica already holds the row) and the
// Executor aborts silently (spec §4.3 step 1).
type ClaimResult struct {
	Task *domain.Task
}

// CommitOutcome classifies how the Executor's single transactional commit
// (spec §4.3 steps 2-8) should mutate the task row; passed to Repository.Commit.
type CommitOutcome struct {
	Log *domain.ExecutionLog

	NewStatus       domain.Status
	CompletedAt     *time.Time
	ExecutionResult []byte
	LastError       *string
	LastErrorStack  *string
	DurationMS      *int64

	// RetryCount/NextScheduledTime are set only when NewStatus is
	// RetryPending (step 8d).
	RetryCount        int
	NextScheduledTime time.Time

	// ClearLock is true for every terminal/non-processing outcome.
	ClearLock bool
}

// Repository is the storage contract the scheduler package needs,
// satisfying spec §4.1's S1-S4 primitives. A concrete implementation
// (internal/infrastructure/postgres.Store) provides it over PostgreSQL.
type Repository interface {
	// FetchReadyTasks implements S1: a skip-locked, priority/time-ordered
	// batch fetch of tasks matching the poller predicate (spec §4.2).
	FetchReadyTasks(ctx context.Context, params FetchParams) ([]*domain.Task, error)

	// ClaimTask implements the conditional update of spec §4.3 step 1:
	// it only succeeds if version matches and the lock predicate holds.
	// A ClaimResult whose Task is nil, with a nil error, means the race
	// was lost.
	ClaimTask(ctx context.Context, taskID domain.TaskID, version int64, instanceID string, lockDuration time.Duration, now time.Time) (*ClaimResult, error)

	// GetTask implements S4: a strong, read-your-writes single-row read.
	GetTask(ctx context.Context, taskID domain.TaskID) (*domain.Task, error)

	// Commit implements spec §4.3 steps 2-8's single transactional
	// boundary: the execution log write and the task row mutation
	// succeed or fail together.
	Commit(ctx context.Context, taskID domain.TaskID, outcome CommitOutcome) error

	// ReapStale implements spec §4.5: a bulk conditional update over tasks
	// whose lock has gone stale, returning the number of tasks reset.
	ReapStale(ctx context.Context, staleThreshold time.Duration, now time.Time) (int, error)

	// TryAcquireClusterMutex implements S3: upsert-with-conditional-expiry
	// on (name, lock_until). acquired=false with a nil error means another
	// replica currently holds it — not a failure.
	TryAcquireClusterMutex(ctx context.Context, name, holderID string, lease time.Duration, now time.Time) (acquired bool, err error)

	// ReleaseClusterMutex releases a held mutex early (tick completion).
	ReleaseClusterMutex(ctx context.Context, name, holderID string) error

	// SubscribeDispatchRequests is the pull side of the out-of-band
	// immediate-dispatch signal spec.md §6 retry-now relies on ("trigger
	// one immediate dispatch cycle for that task id"): the Poller selects
	// on the returned channel alongside its regular ticker. A store that
	// cannot push notifications (internal/infrastructure/sqlitestore)
	// returns a channel that is never written to, which degrades
	// gracefully to the regular poll-interval cadence.
	SubscribeDispatchRequests(ctx context.Context) (<-chan domain.TaskID, error)
}

// TaskWriter is the subset of Repository the inbound HTTP surface needs for
// CRUD/state-command operations (spec §6), kept separate from Repository
// so the Poller/Executor/Reaper never need to know about operator commands.
type TaskWriter interface {
	CreateTask(ctx context.Context, task *domain.Task, policy domain.DuplicatePolicy) (*domain.Task, bool, error)
	GetTask(ctx context.Context, taskID domain.TaskID) (*domain.Task, error)
	SearchTasks(ctx context.Context, params SearchParams) ([]*domain.Task, error)
	ListExecutionLogs(ctx context.Context, taskID domain.TaskID) ([]*domain.ExecutionLog, error)
	UpdateTaskState(ctx context.Context, taskID domain.TaskID, fn func(*domain.Task) error) (*domain.Task, error)

	// NotifyDispatch is the push side of SubscribeDispatchRequests,
	// called by the retry-now handler after it sets a task PENDING. It
	// must never surface as a request failure: the task has already been
	// transitioned, and worst case (a store that cannot push, or a
	// delivery failure) is that the task waits out the next regular poll
	// tick instead of dispatching immediately.
	NotifyDispatch(ctx context.Context, taskID domain.TaskID) error
}

// SearchParams narrows GET /tasks.
type SearchParams struct {
	Status      *domain.Status
	Type        *domain.TaskType
	ReferenceID *string
	Priority    *domain.Priority
	Limit       int
	Offset      int
}
