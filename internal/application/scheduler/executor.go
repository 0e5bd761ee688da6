package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskscheduler/engine/internal/domain"
)

// tracer is the engine-wide tracer for scheduler spans (spec §5, per
// SPEC_FULL.md's "Tracing & metrics": one span per task attempt here, one
// span per Poller tick in poller.go), pulled from whatever TracerProvider
// internal/infrastructure/observability.Init registered globally.
var tracer = otel.Tracer("github.com/taskscheduler/engine/internal/application/scheduler")

// Executor runs the per-task pipeline of spec §4.3. It owns no state
// across tasks beyond its dependencies, so it is safe to share a single
// Executor across every goroutine the Poller spawns.
type Executor struct {
	repo       Repository
	registry   *Registry
	alerter    Alerter
	metrics    Metrics
	instanceID string
	cfg        Config
}

// NewExecutor builds an Executor. instanceID should be fixed for the
// replica's lifetime (spec §4.3: "instance_id = hostname + ':' + process_id").
func NewExecutor(repo Repository, registry *Registry, alerter Alerter, metrics Metrics, instanceID string, cfg Config) *Executor {
	if alerter == nil {
		alerter = NoopAlerter{}
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Executor{repo: repo, registry: registry, alerter: alerter, metrics: metrics, instanceID: instanceID, cfg: cfg}
}

// Run executes exactly one task end to end (spec §4.3 steps 1-9). It never
// returns an error for expected outcomes (lost race, expiry, non-executable
// status, handler failure) — those are all terminal states committed to the
// store. It returns an error only for unexpected store failures, in which
// case the task's lock (if acquired) simply expires and the Reaper
// eventually recovers it (spec §4.3 "Step atomicity").
func (e *Executor) Run(ctx context.Context, taskID domain.TaskID, version int64) (err error) {
	ctx, span := tracer.Start(ctx, "scheduler.execute_task", trace.WithAttributes(
		attribute.String("task_id", taskID.String()),
		attribute.Int64("version", version),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	now := time.Now().UTC()

	// Step 1: lock acquisition via conditional update.
	claim, err := e.repo.ClaimTask(ctx, taskID, version, e.instanceID, e.cfg.LockDuration, now)
	if err != nil {
		return fmt.Errorf("claim task %s: %w", taskID, err)
	}
	if claim == nil || claim.Task == nil {
		slog.DebugContext(ctx, "lost claim race, abandoning attempt", "task_id", taskID)
		return nil
	}
	task := claim.Task

	// Step 2: reload already done implicitly — ClaimTask returns the
	// post-update row, which is the reload the spec calls for.

	// Step 3: expiry check.
	if task.ExpiresAt != nil && !task.ExpiresAt.After(now) {
		return e.commitExpired(ctx, task, now)
	}

	// Step 4: executability check. PROCESSING is allowed here because
	// ClaimTask itself transitioned the row into PROCESSING as part of
	// the lock; what's being checked is whether the *prior* status was
	// dispatchable, which the Poller's fetch predicate already guaranteed,
	// so this is a defense against a race where an operator mutated the
	// row between fetch and claim.
	if !task.Status.Executable() && task.Status != domain.StatusProcessing {
		return e.commitAbortedNonExecutable(ctx, task, now)
	}

	handler, ok := e.registry.Lookup(task.Type)
	if !ok {
		return e.commitPermanentFailure(ctx, task, now, "NO_HANDLER_REGISTERED",
			fmt.Sprintf("no handler registered for task type %q", task.Type), nil, nil)
	}

	// Step 6: validate.
	if err := handler.Validate(task); err != nil {
		return e.commitPermanentFailure(ctx, task, now, "VALIDATION_ERROR", err.Error(), nil, nil)
	}

	// Steps 7-9: invoke handler with panic recovery.
	result, execErr := e.invokeWithRecovery(ctx, handler, task)

	return e.classifyAndCommit(ctx, task, handler, now, result, execErr)
}

// invokeWithRecovery calls handler.Execute, converting a recovered panic
// into a PanicError per spec §4.3 step 9.
func (e *Executor) invokeWithRecovery(ctx context.Context, handler Handler, task *domain.Task) (result Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &PanicError{Value: p, StackTrace: domain.TruncateStackTrace(string(debug.Stack()))}
		}
	}()
	result, err = handler.Execute(ctx, task)
	return
}

func (e *Executor) classifyAndCommit(ctx context.Context, task *domain.Task, handler Handler, now time.Time, result Result, execErr error) error {
	if execErr == nil && result.Success {
		return e.commitSuccess(ctx, task, now, result)
	}

	// Build a uniform failure view whether it came from a typed error
	// (panic/retryable/cancelled) or from Result{Success:false}.
	var (
		retryable   bool
		errType     string
		errMessage  string
		httpStatus  *int
		stackTrace  *string
		customDelay *int64
	)

	var pe *PanicError
	switch {
	case errors.As(execErr, &pe):
		retryable = true
		errType = "PANIC"
		errMessage = fmt.Sprintf("handler panicked: %v", pe.Value)
		stackTrace = &pe.StackTrace
	case IsTaskCancelled(execErr):
		errType = "CANCELLED"
		errMessage = execErr.Error()
		log := e.closeLog(task, now, false, &errType, &errMessage, nil, nil, nil)
		return e.commit(ctx, task, CommitOutcome{
			Log:         log,
			NewStatus:   domain.StatusCancelled,
			CompletedAt: &now,
			LastError:   &errMessage,
			ClearLock:   true,
		})
	case execErr != nil:
		retryable = IsRetryable(execErr)
		errType = "HANDLER_ERROR"
		errMessage = execErr.Error()
	default:
		retryable = result.Retryable
		errType = result.ErrorType
		errMessage = result.ErrorMessage
		httpStatus = result.HTTPStatusCode
		customDelay = result.CustomDelayMS
	}

	if !retryable {
		return e.commitPermanentFailure(ctx, task, now, errType, errMessage, httpStatus, stackTrace)
	}

	newRetryCount := task.RetryCount + 1
	effectiveMax := task.EffectiveMaxRetries(e.cfg.DefaultMaxRetries)
	if newRetryCount >= effectiveMax {
		return e.commitMaxRetriesExceeded(ctx, task, now, errType, errMessage, httpStatus, stackTrace)
	}

	var delay time.Duration
	if customDelay != nil {
		delay = time.Duration(*customDelay) * time.Millisecond
	} else {
		delay = handler.NextRetryDelay(task, task.EffectiveRetryDelayHours(e.cfg.DefaultRetryDelay))
	}
	return e.commitRetryPending(ctx, task, now, newRetryCount, delay, errType, errMessage, httpStatus, stackTrace)
}

func (e *Executor) commitSuccess(ctx context.Context, task *domain.Task, now time.Time, result Result) error {
	duration := now.Sub(*task.StartedAt).Milliseconds()
	log := e.closeLog(task, now, true, nil, nil, nil, nil, result.ResponsePayload)
	outcome := CommitOutcome{
		Log:             log,
		NewStatus:       domain.StatusCompleted,
		CompletedAt:     &now,
		ExecutionResult: result.ResponsePayload,
		DurationMS:      &duration,
		ClearLock:       true,
	}
	return e.commit(ctx, task, outcome)
}

func (e *Executor) commitPermanentFailure(ctx context.Context, task *domain.Task, now time.Time, errType, errMessage string, httpStatus *int, stackTrace *string) error {
	log := e.closeLog(task, now, false, &errType, &errMessage, httpStatus, stackTrace, nil)
	outcome := CommitOutcome{
		Log:         log,
		NewStatus:   domain.StatusDeadLetter,
		CompletedAt: &now,
		LastError:   &errMessage,
		ClearLock:   true,
	}
	if err := e.commit(ctx, task, outcome); err != nil {
		return err
	}
	if task.Priority >= domain.PriorityHigh {
		e.alerter.TaskFailure(ctx, task, errMessage)
	}
	return nil
}

func (e *Executor) commitMaxRetriesExceeded(ctx context.Context, task *domain.Task, now time.Time, errType, errMessage string, httpStatus *int, stackTrace *string) error {
	log := e.closeLog(task, now, false, &errType, &errMessage, httpStatus, stackTrace, nil)
	outcome := CommitOutcome{
		Log:         log,
		NewStatus:   domain.StatusMaxRetriesExceeded,
		CompletedAt: &now,
		LastError:   &errMessage,
		ClearLock:   true,
	}
	if err := e.commit(ctx, task, outcome); err != nil {
		return err
	}
	e.alerter.MaxRetriesExceeded(ctx, task)
	e.metrics.MaxRetriesExceeded(ctx, task)
	return nil
}

func (e *Executor) commitRetryPending(ctx context.Context, task *domain.Task, now time.Time, newRetryCount int, delay time.Duration, errType, errMessage string, httpStatus *int, stackTrace *string) error {
	log := e.closeLog(task, now, false, &errType, &errMessage, httpStatus, stackTrace, nil)
	outcome := CommitOutcome{
		Log:               log,
		NewStatus:         domain.StatusRetryPending,
		LastError:         &errMessage,
		RetryCount:        newRetryCount,
		NextScheduledTime: now.Add(delay),
		ClearLock:         true,
	}
	if err := e.commit(ctx, task, outcome); err != nil {
		return err
	}
	e.metrics.RetryScheduled(ctx, task)
	return nil
}

func (e *Executor) commitExpired(ctx context.Context, task *domain.Task, now time.Time) error {
	outcome := CommitOutcome{
		NewStatus:   domain.StatusExpired,
		CompletedAt: &now,
		ClearLock:   true,
	}
	return e.commit(ctx, task, outcome)
}

// commitAbortedNonExecutable releases the lock without any status change
// side effects beyond what ClaimTask already wrote; used when a race
// leaves a task non-executable (e.g. cancelled between fetch and claim).
func (e *Executor) commitAbortedNonExecutable(ctx context.Context, task *domain.Task, now time.Time) error {
	outcome := CommitOutcome{
		NewStatus: task.Status,
		ClearLock: true,
	}
	return e.commit(ctx, task, outcome)
}

func (e *Executor) commit(ctx context.Context, task *domain.Task, outcome CommitOutcome) error {
	if err := e.repo.Commit(ctx, task.ID, outcome); err != nil {
		slog.ErrorContext(ctx, "executor commit failed, lock will expire and be reaped",
			"task_id", task.ID, "error", err)
		return fmt.Errorf("commit task %s: %w", task.ID, err)
	}
	return nil
}

func (e *Executor) closeLog(task *domain.Task, now time.Time, success bool, errType, errMessage *string, httpStatus *int, stackTrace *string, responsePayload json.RawMessage) *domain.ExecutionLog {
	startedAt := now
	if task.StartedAt != nil {
		startedAt = *task.StartedAt
	}
	durationMS := now.Sub(startedAt).Milliseconds()
	status := domain.ExecutionLogStatusFailed
	if success {
		status = domain.ExecutionLogStatusCompleted
	}
	return &domain.ExecutionLog{
		ID:               uuid.NewString(),
		TaskID:           task.ID,
		AttemptNumber:    task.RetryCount + 1,
		Status:           status,
		ExecutorInstance: e.instanceID,
		StartedAt:        startedAt,
		CompletedAt:      &now,
		DurationMS:       &durationMS,
		Success:          success,
		ErrorMessage:     errMessage,
		ErrorStackTrace:  stackTrace,
		ErrorType:        errType,
		HTTPStatusCode:   httpStatus,
		RequestPayload:   task.Payload,
		ResponsePayload:  responsePayload,
	}
}
