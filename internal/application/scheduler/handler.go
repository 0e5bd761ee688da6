package scheduler

import (
	"context"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// Result is the single contract between a Handler and the Executor (spec
// §9: "a plain value, not an exception hierarchy"). Exactly one of the
// success or failure field groups is meaningful, selected by Success.
type Result struct {
	Success bool

	// ResponsePayload is recorded verbatim into ExecutionLog.ResponsePayload
	// and, on success, into Task.ExecutionResult.
	ResponsePayload []byte

	// Failure fields, meaningful when !Success.
	Retryable      bool
	ErrorType      string
	ErrorMessage   string
	HTTPStatusCode *int
	// CustomDelayMS, if non-nil, overrides the handler's backoff function
	// for this attempt (spec §4.3 step 8d).
	CustomDelayMS *int64
}

// Handler is a stateless value that performs one task type's external
// effect. The set of task types is closed per deployment; new types are
// added by registering a new Handler (spec §9: "avoid open inheritance").
type Handler interface {
	TaskType() domain.TaskType

	// Validate runs before Execute (spec §4.3 step 6). Return a
	// *ValidationError for a permanent pre-flight rejection.
	Validate(task *domain.Task) error

	// Execute performs the external effect. It must not panic for domain
	// outcomes: those become Result{Success:false}. A goroutine panic
	// inside Execute is recovered by the Executor and treated as a
	// retryable failure (spec §4.3 step 9) regardless of what Execute
	// itself returns.
	Execute(ctx context.Context, task *domain.Task) (Result, error)

	// NextRetryDelay computes the backoff for the upcoming attempt
	// (attemptsSoFar = task.RetryCount before this attempt). The default
	// policy (spec §4.4) is effectiveRetryDelayHours; handlers override to
	// implement exponential backoff with jitter.
	NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration
}

// Registry maps task type to Handler. It is itself the closed dispatch
// table the spec calls for (spec §9).
type Registry struct {
	handlers map[domain.TaskType]Handler
}

// NewRegistry builds a Registry from a list of handlers, one per task type.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.TaskType]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.TaskType()] = h
	}
	return r
}

// Lookup returns the handler registered for t, or false if none is.
func (r *Registry) Lookup(t domain.TaskType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}
