package httpapi

import (
	"encoding/json"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// createTaskRequest is the body of POST /tasks (spec §6.1).
type createTaskRequest struct {
	Type                 string          `json:"type"`
	Priority             int             `json:"priority,omitempty"`
	ReferenceID          string          `json:"reference_id"`
	SecondaryReferenceID *string         `json:"secondary_reference_id,omitempty"`
	Description          string          `json:"description,omitempty"`
	Payload              json.RawMessage `json:"payload,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	ScheduledTime        *time.Time      `json:"scheduled_time,omitempty"`
	ExpiresAt            *time.Time      `json:"expires_at,omitempty"`
	MaxRetries           *int            `json:"max_retries,omitempty"`
	RetryDelayHours      *float64        `json:"retry_delay_hours,omitempty"`
	PreventDuplicates    bool            `json:"prevent_duplicates,omitempty"`
	DuplicatePolicy      string          `json:"duplicate_policy,omitempty"`
}

// cancelRequest is the body of POST /tasks/{id}/cancel.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// retryRequest is the body of POST /tasks/{id}/retry.
type retryRequest struct {
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// taskResponse is the wire representation of domain.Task returned by every
// task-bearing endpoint.
type taskResponse struct {
	ID                   string          `json:"id"`
	Type                 string          `json:"type"`
	Priority             int             `json:"priority"`
	ReferenceID          string          `json:"reference_id"`
	SecondaryReferenceID *string         `json:"secondary_reference_id,omitempty"`
	Description          string          `json:"description,omitempty"`
	Status               string          `json:"status"`
	Payload              json.RawMessage `json:"payload,omitempty"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	ScheduledTime        time.Time       `json:"scheduled_time"`
	ExpiresAt            *time.Time      `json:"expires_at,omitempty"`
	RetryCount           int             `json:"retry_count"`
	MaxRetries           *int            `json:"max_retries,omitempty"`
	RetryDelayHours      *float64        `json:"retry_delay_hours,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	StartedAt            *time.Time      `json:"started_at,omitempty"`
	CompletedAt          *time.Time      `json:"completed_at,omitempty"`
	ExecutionDurationMS  *int64          `json:"execution_duration_ms,omitempty"`
	LastError            *string         `json:"last_error,omitempty"`
	ExecutionResult      json.RawMessage `json:"execution_result,omitempty"`
}

func toTaskResponse(t *domain.Task) taskResponse {
	return taskResponse{
		ID:                   t.ID.String(),
		Type:                 string(t.Type),
		Priority:             int(t.Priority),
		ReferenceID:          t.ReferenceID,
		SecondaryReferenceID: t.SecondaryReferenceID,
		Description:          t.Description,
		Status:               string(t.Status),
		Payload:              t.Payload,
		Metadata:             t.Metadata,
		ScheduledTime:        t.ScheduledTime,
		ExpiresAt:            t.ExpiresAt,
		RetryCount:           t.RetryCount,
		MaxRetries:           t.MaxRetries,
		RetryDelayHours:      t.RetryDelayHours,
		Version:              t.Version,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		StartedAt:            t.StartedAt,
		CompletedAt:          t.CompletedAt,
		ExecutionDurationMS:  t.ExecutionDurationMS,
		LastError:            t.LastError,
		ExecutionResult:      t.ExecutionResult,
	}
}

// executionLogResponse is the wire representation of domain.ExecutionLog.
type executionLogResponse struct {
	ID               string          `json:"id"`
	TaskID           string          `json:"task_id"`
	AttemptNumber    int             `json:"attempt_number"`
	Status           string          `json:"status"`
	ExecutorInstance string          `json:"executor_instance"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	DurationMS       *int64          `json:"duration_ms,omitempty"`
	Success          bool            `json:"success"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	ErrorType        *string         `json:"error_type,omitempty"`
	HTTPStatusCode   *int            `json:"http_status_code,omitempty"`
	ResponsePayload  json.RawMessage `json:"response_payload,omitempty"`
}

func toExecutionLogResponse(l *domain.ExecutionLog) executionLogResponse {
	return executionLogResponse{
		ID:               l.ID,
		TaskID:           l.TaskID.String(),
		AttemptNumber:    l.AttemptNumber,
		Status:           string(l.Status),
		ExecutorInstance: l.ExecutorInstance,
		StartedAt:        l.StartedAt,
		CompletedAt:      l.CompletedAt,
		DurationMS:       l.DurationMS,
		Success:          l.Success,
		ErrorMessage:     l.ErrorMessage,
		ErrorType:        l.ErrorType,
		HTTPStatusCode:   l.HTTPStatusCode,
		ResponsePayload:  l.ResponsePayload,
	}
}
