// Package domain holds the durable entities of the scheduling engine:
// Task, ExecutionLog, and ClusterMutex, plus their validating constructors
// and sentinel errors. Nothing in this package performs I/O.
package domain

import (
	"encoding/json"
	"time"
)

// TaskType identifies the handler a task dispatches to. The set is closed
// per deployment; new values require a new Handler registration.
type TaskType string

const (
	TaskTypeOrderCancel          TaskType = "ORDER_CANCEL"
	TaskTypePaymentRefund        TaskType = "PAYMENT_REFUND"
	TaskTypePaymentPartialRefund TaskType = "PAYMENT_PARTIAL_REFUND"
	TaskTypePaymentVoid          TaskType = "PAYMENT_VOID"
	TaskTypeWebhookNotification  TaskType = "WEBHOOK_NOTIFICATION"
	TaskTypeCustom               TaskType = "CUSTOM"
)

// NewTaskType validates a raw string against the closed set of task types.
func NewTaskType(s string) (TaskType, error) {
	switch TaskType(s) {
	case TaskTypeOrderCancel, TaskTypePaymentRefund, TaskTypePaymentPartialRefund,
		TaskTypePaymentVoid, TaskTypeWebhookNotification, TaskTypeCustom:
		return TaskType(s), nil
	default:
		return "", wrapInvalid(ErrInvalidTaskType, s)
	}
}

// Priority orders tasks within a fetch batch; higher values run first.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 8
	PriorityCritical Priority = 10
)

// NewPriority validates a raw integer against the closed set of priorities.
// An empty/zero input defaults to PriorityNormal, mirroring the teacher's
// empty-string-defaults-to-medium convention for priority value objects.
func NewPriority(p int) (Priority, error) {
	if p == 0 {
		return PriorityNormal, nil
	}
	switch Priority(p) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return Priority(p), nil
	default:
		return 0, wrapInvalidInt(ErrInvalidPriority, p)
	}
}

// Status is the task lifecycle state. IsTerminal and Executable below
// classify the states; domain/errors.go holds the errors for refused moves.
type Status string

const (
	StatusPending             Status = "PENDING"
	StatusScheduled           Status = "SCHEDULED"
	StatusProcessing          Status = "PROCESSING"
	StatusCompleted           Status = "COMPLETED"
	StatusFailed              Status = "FAILED"
	StatusRetryPending        Status = "RETRY_PENDING"
	StatusMaxRetriesExceeded  Status = "MAX_RETRIES_EXCEEDED"
	StatusCancelled           Status = "CANCELLED"
	StatusPaused              Status = "PAUSED"
	StatusExpired             Status = "EXPIRED"
	StatusDeadLetter          Status = "DEAD_LETTER"
)

// IsTerminal reports whether a task in this status is never re-read for
// execution and never transitions again (invariant I2).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusMaxRetriesExceeded, StatusDeadLetter:
		return true
	default:
		return false
	}
}

// Executable reports whether the poller's fetch predicate considers this
// status ready for dispatch.
func (s Status) Executable() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusFailed, StatusRetryPending:
		return true
	default:
		return false
	}
}

// NewStatus validates a raw string against the closed lifecycle enum.
func NewStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusScheduled, StatusProcessing, StatusCompleted, StatusFailed,
		StatusRetryPending, StatusMaxRetriesExceeded, StatusCancelled, StatusPaused,
		StatusExpired, StatusDeadLetter:
		return Status(s), nil
	default:
		return "", wrapInvalid(ErrInvalidTaskStatus, s)
	}
}

// DuplicatePolicy governs CreateTask's behavior when a non-terminal row
// already exists for the same (reference_id, type) pair. See the Open
// Question decision recorded in SPEC_FULL.md/DESIGN.md.
type DuplicatePolicy int

const (
	// DuplicatePolicyReject returns ErrDuplicateTask (maps to 409 outward).
	DuplicatePolicyReject DuplicatePolicy = iota
	// DuplicatePolicyReturnExisting idempotently returns the existing row.
	DuplicatePolicyReturnExisting
)

// Task is the primary persisted entity. Field groups mirror §3 of the spec:
// identity, classification, correlation, state, payload, scheduling, retry,
// lock, audit.
type Task struct {
	ID TaskID

	Type        TaskType
	Priority    Priority
	ReferenceID string
	SecondaryReferenceID *string
	Description string

	Status Status

	Payload  json.RawMessage
	Metadata json.RawMessage

	ScheduledTime time.Time
	ExpiresAt     *time.Time
	// CronExpression is reserved for a future recurring-task feature; the
	// engine never reads it (see SPEC_FULL.md §9).
	CronExpression *string

	RetryCount      int
	MaxRetries      *int
	RetryDelayHours *float64

	LockedBy    *string
	LockedUntil *time.Time
	Version     int64

	CreatedAt           time.Time
	UpdatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	ExecutionDurationMS *int64
	LastError           *string
	LastErrorStackTrace *string
	ExecutionResult     json.RawMessage
}

// DefaultMaxRetries and DefaultRetryDelayHours record the engine's built-in
// fleet defaults. EffectiveMaxRetries and EffectiveRetryDelayHours do not
// read them: both take the fleet default as an argument, which the engine
// config supplies (SCHED_DEFAULT_MAX_RETRIES / SCHED_DEFAULT_RETRY_DELAY_HOURS,
// falling back to the scheduler package's own defaults of the same values).
const (
	DefaultMaxRetries      = 5
	DefaultRetryDelayHours = 24.0
)

// EffectiveMaxRetries resolves the per-task ceiling against a fleet default.
func (t *Task) EffectiveMaxRetries(fleetDefault int) int {
	if t.MaxRetries != nil {
		return *t.MaxRetries
	}
	return fleetDefault
}

// EffectiveRetryDelayHours resolves the per-task backoff base against a
// fleet default.
func (t *Task) EffectiveRetryDelayHours(fleetDefault float64) float64 {
	if t.RetryDelayHours != nil {
		return *t.RetryDelayHours
	}
	return fleetDefault
}

// IsLocked reports whether the task currently carries a live lock.
func (t *Task) IsLocked(now time.Time) bool {
	return t.LockedBy != nil && t.LockedUntil != nil && t.LockedUntil.After(now)
}

// TaskID is an opaque 128-bit identity, represented as its canonical string
// form (a UUID) throughout the engine.
type TaskID string

func (id TaskID) String() string { return string(id) }
