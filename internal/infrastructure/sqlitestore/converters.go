package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// timeLayout is how timestamps are stored in SQLite TEXT columns: the
// driver has no native timestamp type, so every instant round-trips as an
// RFC3339Nano string in UTC.
const timeLayout = time.RFC3339Nano

const taskColumns = `id, type, priority, reference_id, secondary_reference_id, description,
	status, payload, metadata, scheduled_time, expires_at, cron_expression,
	retry_count, max_retries, retry_delay_hours, locked_by, locked_until, version,
	created_at, updated_at, started_at, completed_at, execution_duration_ms,
	last_error, last_error_stack_trace, execution_result`

const executionLogColumns = `id, task_id, attempt_number, status, executor_instance, started_at,
	completed_at, duration_ms, success, error_message, error_stack_trace, error_type,
	http_status_code, request_payload, response_payload`

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var taskType, status string
	var payload, metadata string
	var executionResult sql.NullString
	var secondaryRef, cronExpr, lockedBy, lastError, lastErrorStack sql.NullString
	var scheduledTimeStr, createdAtStr, updatedAtStr string
	var expiresAt, lockedUntil, startedAt, completedAt sql.NullString
	var maxRetries sql.NullInt64
	var retryDelayHours sql.NullFloat64
	var executionDurationMS sql.NullInt64

	if err := row.Scan(
		&t.ID, &taskType, &t.Priority, &t.ReferenceID, &secondaryRef, &t.Description,
		&status, &payload, &metadata, &scheduledTimeStr, &expiresAt, &cronExpr,
		&t.RetryCount, &maxRetries, &retryDelayHours, &lockedBy, &lockedUntil, &t.Version,
		&createdAtStr, &updatedAtStr, &startedAt, &completedAt, &executionDurationMS,
		&lastError, &lastErrorStack, &executionResult,
	); err != nil {
		return nil, err
	}

	t.Type = domain.TaskType(taskType)
	t.Status = domain.Status(status)
	t.Payload = json.RawMessage(payload)
	t.Metadata = json.RawMessage(metadata)
	if executionResult.Valid {
		t.ExecutionResult = json.RawMessage(executionResult.String)
	}
	if secondaryRef.Valid {
		t.SecondaryReferenceID = &secondaryRef.String
	}
	if cronExpr.Valid {
		t.CronExpression = &cronExpr.String
	}
	if lockedBy.Valid {
		t.LockedBy = &lockedBy.String
	}
	if lastError.Valid {
		t.LastError = &lastError.String
	}
	if lastErrorStack.Valid {
		t.LastErrorStackTrace = &lastErrorStack.String
	}
	if maxRetries.Valid {
		v := int(maxRetries.Int64)
		t.MaxRetries = &v
	}
	if retryDelayHours.Valid {
		t.RetryDelayHours = &retryDelayHours.Float64
	}
	if executionDurationMS.Valid {
		t.ExecutionDurationMS = &executionDurationMS.Int64
	}

	var err error
	if t.ScheduledTime, err = parseTime(scheduledTimeStr); err != nil {
		return nil, fmt.Errorf("parse scheduled_time: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if t.ExpiresAt, err = parseTimePtr(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if t.LockedUntil, err = parseTimePtr(lockedUntil); err != nil {
		return nil, fmt.Errorf("parse locked_until: %w", err)
	}
	if t.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if t.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
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

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func nullableJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func scanExecutionLog(row rowScanner) (*domain.ExecutionLog, error) {
	var l domain.ExecutionLog
	var taskID, status string
	var startedAtStr string
	var completedAt sql.NullString
	var durationMS, httpStatusCode sql.NullInt64
	var successInt int
	var errorMessage, errorStack, errorType sql.NullString
	var requestPayload, responsePayload sql.NullString

	if err := row.Scan(
		&l.ID, &taskID, &l.AttemptNumber, &status, &l.ExecutorInstance, &startedAtStr,
		&completedAt, &durationMS, &successInt, &errorMessage, &errorStack, &errorType,
		&httpStatusCode, &requestPayload, &responsePayload,
	); err != nil {
		return nil, err
	}

	l.TaskID = domain.TaskID(taskID)
	l.Status = domain.ExecutionLogStatus(status)
	l.Success = successInt != 0
	if errorMessage.Valid {
		l.ErrorMessage = &errorMessage.String
	}
	if errorStack.Valid {
		l.ErrorStackTrace = &errorStack.String
	}
	if errorType.Valid {
		l.ErrorType = &errorType.String
	}
	if durationMS.Valid {
		l.DurationMS = &durationMS.Int64
	}
	if httpStatusCode.Valid {
		v := int(httpStatusCode.Int64)
		l.HTTPStatusCode = &v
	}
	if requestPayload.Valid {
		l.RequestPayload = json.RawMessage(requestPayload.String)
	}
	if responsePayload.Valid {
		l.ResponsePayload = json.RawMessage(responsePayload.String)
	}

	var err error
	if l.StartedAt, err = parseTime(startedAtStr); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if l.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}

	return &l, nil
}

func scanExecutionLogs(rows *sql.Rows) ([]*domain.ExecutionLog, error) {
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
