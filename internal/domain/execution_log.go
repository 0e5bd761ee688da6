package domain

import (
	"encoding/json"
	"time"
)

// ExecutionLogStatus is the terminal status of a single attempt, distinct
// from Task.Status (a task can carry many logs across retries).
type ExecutionLogStatus string

const (
	ExecutionLogStatusProcessing ExecutionLogStatus = "PROCESSING"
	ExecutionLogStatusCompleted  ExecutionLogStatus = "COMPLETED"
	ExecutionLogStatusFailed     ExecutionLogStatus = "FAILED"
)

// maxStackTraceBytes truncates stored stack traces per spec §3.
const maxStackTraceBytes = 4 * 1024

// ExecutionLog is one append-only row per execution attempt. Logs are
// never mutated after the attempt closes (the scheduler's Executor builds
// each log as a complete new value when the attempt ends rather than
// editing one in place).
type ExecutionLog struct {
	ID               string
	TaskID           TaskID
	AttemptNumber    int
	Status           ExecutionLogStatus
	ExecutorInstance string
	StartedAt        time.Time
	CompletedAt      *time.Time
	DurationMS       *int64
	Success          bool
	ErrorMessage     *string
	ErrorStackTrace  *string
	ErrorType        *string
	HTTPStatusCode   *int
	RequestPayload   json.RawMessage
	ResponsePayload  json.RawMessage
}

// TruncateStackTrace clamps a stack trace to the ≤4KB storage bound from
// spec §3, appending a marker so truncation is visible to operators.
func TruncateStackTrace(trace string) string {
	const marker = "...[truncated]"
	if len(trace) <= maxStackTraceBytes {
		return trace
	}
	cut := maxStackTraceBytes - len(marker)
	if cut < 0 {
		cut = 0
	}
	return trace[:cut] + marker
}

// NewExecutionLog opens a log row for an attempt about to run.
func NewExecutionLog(id string, taskID TaskID, attemptNumber int, executorInstance string, startedAt time.Time, requestPayload json.RawMessage) *ExecutionLog {
	return &ExecutionLog{
		ID:               id,
		TaskID:           taskID,
		AttemptNumber:    attemptNumber,
		Status:           ExecutionLogStatusProcessing,
		ExecutorInstance: executorInstance,
		StartedAt:        startedAt,
		RequestPayload:   requestPayload,
	}
}
