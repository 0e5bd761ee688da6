package scheduler

import "errors"

// RetryableError marks a handler failure as transient: the executor will
// schedule another attempt (spec §4.3 step 8d) rather than dead-lettering
// the task. Wrap any transient error with Transient() before returning it
// from a Handler.Execute.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Transient wraps err as a RetryableError. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err (or anything it wraps) is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PanicError records a recovered handler panic as a typed, retryable
// failure (spec §4.3 step 9): "uncaught exception in handler is equivalent
// to a retryable failure".
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string { return "handler panicked" }

// IsPanic reports whether err is a PanicError.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

// ValidationError marks a permanent, pre-execution failure from a
// Handler.Validate call (spec §4.3 step 6).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TaskCancelled marks a task as no longer executable for reasons outside
// the handler's control (e.g. it was cancelled mid-flight by an operator);
// the Executor commits the task as CANCELLED and emits no Task-Failure
// alert.
type TaskCancelled struct {
	Reason string
}

func (e *TaskCancelled) Error() string { return "task cancelled: " + e.Reason }

// IsTaskCancelled reports whether err is a TaskCancelled.
func IsTaskCancelled(err error) bool {
	var tc *TaskCancelled
	return errors.As(err, &tc)
}
