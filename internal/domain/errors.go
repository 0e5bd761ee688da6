package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by domain constructors and application-layer
// operations. Each comment notes the HTTP status the inbound API maps it
// to (internal/infrastructure/httpapi/response.FromDomainError), mirroring
// the teacher's domain/errors.go convention.
var (
	// ErrTaskNotFound maps to 404.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTaskType maps to 400.
	ErrInvalidTaskType = errors.New("invalid task type")
	// ErrInvalidTaskStatus maps to 400.
	ErrInvalidTaskStatus = errors.New("invalid task status")
	// ErrInvalidPriority maps to 400.
	ErrInvalidPriority = errors.New("invalid task priority")
	// ErrReferenceIDRequired maps to 400.
	ErrReferenceIDRequired = errors.New("reference_id is required")
	// ErrDuplicateTask maps to 409: a non-terminal task already exists for
	// the (reference_id, type) pair and DuplicatePolicyReject was chosen.
	ErrDuplicateTask = errors.New("duplicate task for reference_id and type")
	// ErrTaskLocked maps to 409: an operator command was refused because
	// the task is currently held by an executor.
	ErrTaskLocked = errors.New("task is currently locked")
	// ErrTaskTerminal maps to 409: an operator command was refused because
	// the task is in a terminal status (invariant I2).
	ErrTaskTerminal = errors.New("task is in a terminal status")
	// ErrInvalidStateTransition maps to 409: e.g. resume on a non-PAUSED
	// task, or retry on a task that isn't in a failure state or PAUSED.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrVersionConflict maps to 409: optimistic-concurrency lost update.
	ErrVersionConflict = errors.New("version conflict")
	// ErrLockLost is returned by Repository.Commit when its task update
	// affected zero rows. That update is keyed by task id alone, so this
	// means the row no longer exists; FromDomainError has no case for it,
	// so it surfaces as a 500.
	ErrLockLost = errors.New("lock lost: task ownership changed during processing")
)

func wrapInvalid(sentinel error, value string) error {
	return fmt.Errorf("%w: %q", sentinel, value)
}

func wrapInvalidInt(sentinel error, value int) error {
	return fmt.Errorf("%w: %d", sentinel, value)
}
