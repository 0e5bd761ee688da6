package postgres

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskscheduler/engine/internal/domain"
)

// taskColumns lists every tasks column in the fixed order scanTask expects.
// Kept as one constant so every query site (fetch, claim, get, search)
// selects and scans identically, the way the teacher's repositories share
// a single column list across queries touching the same table.
const taskColumns = `id, type, priority, reference_id, secondary_reference_id, description,
	status, payload, metadata, scheduled_time, expires_at, cron_expression,
	retry_count, max_retries, retry_delay_hours, locked_by, locked_until, version,
	created_at, updated_at, started_at, completed_at, execution_duration_ms,
	last_error, last_error_stack_trace, execution_result`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var taskType, status string
	var payload, metadata, executionResult []byte

	if err := row.Scan(
		&t.ID, &taskType, &t.Priority, &t.ReferenceID, &t.SecondaryReferenceID, &t.Description,
		&status, &payload, &metadata, &t.ScheduledTime, &t.ExpiresAt, &t.CronExpression,
		&t.RetryCount, &t.MaxRetries, &t.RetryDelayHours, &t.LockedBy, &t.LockedUntil, &t.Version,
		&t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.CompletedAt, &t.ExecutionDurationMS,
		&t.LastError, &t.LastErrorStackTrace, &executionResult,
	); err != nil {
		return nil, err
	}

	t.Type = domain.TaskType(taskType)
	t.Status = domain.Status(status)
	t.Payload = json.RawMessage(payload)
	t.Metadata = json.RawMessage(metadata)
	if executionResult != nil {
		t.ExecutionResult = json.RawMessage(executionResult)
	}
	return &t, nil
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func rawOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}

// executionLogColumns mirrors taskColumns for the execution_logs table.
const executionLogColumns = `id, task_id, attempt_number, status, executor_instance, started_at,
	completed_at, duration_ms, success, error_message, error_stack_trace, error_type,
	http_status_code, request_payload, response_payload`

func scanExecutionLog(row rowScanner) (*domain.ExecutionLog, error) {
	var l domain.ExecutionLog
	var taskID, status string
	var requestPayload, responsePayload []byte

	if err := row.Scan(
		&l.ID, &taskID, &l.AttemptNumber, &status, &l.ExecutorInstance, &l.StartedAt,
		&l.CompletedAt, &l.DurationMS, &l.Success, &l.ErrorMessage, &l.ErrorStackTrace, &l.ErrorType,
		&l.HTTPStatusCode, &requestPayload, &responsePayload,
	); err != nil {
		return nil, err
	}

	l.TaskID = domain.TaskID(taskID)
	l.Status = domain.ExecutionLogStatus(status)
	if requestPayload != nil {
		l.RequestPayload = json.RawMessage(requestPayload)
	}
	if responsePayload != nil {
		l.ResponsePayload = json.RawMessage(responsePayload)
	}
	return &l, nil
}

func scanExecutionLogs(rows pgx.Rows) ([]*domain.ExecutionLog, error) {
	defer rows.Close()
	var logs []*domain.ExecutionLog
	for rows.Next() {
		l, err := scanExecutionLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// nowUTC is the single clock read point for converters that need to stamp
// a "now" onto rows being written; kept as a function so callers pass an
// explicit timestamp everywhere else (the engine's clock discipline is
// "caller supplies now").
func nowUTC() time.Time { return time.Now().UTC() }
