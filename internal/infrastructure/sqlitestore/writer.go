package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// CreateTask mirrors internal/infrastructure/postgres.Store.CreateTask's
// invariant-I5 duplicate check, adapted to database/sql transactions.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task, policy domain.DuplicatePolicy) (*domain.Task, bool, error) {
	if task.ReferenceID == "" {
		return nil, false, domain.ErrReferenceIDRequired
	}
	if task.ID == "" {
		task.ID = domain.TaskID(uuid.NewString())
	}

	var result *domain.Task
	var existed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := findNonTerminalDuplicate(ctx, tx, task.ReferenceID, task.Type)
		if err != nil {
			return err
		}
		if existing != nil {
			switch policy {
			case domain.DuplicatePolicyReturnExisting:
				result = existing
				existed = true
				return nil
			default:
				return domain.ErrDuplicateTask
			}
		}

		now := nowUTC()
		if task.CreatedAt.IsZero() {
			task.CreatedAt = now
		}
		task.UpdatedAt = now
		if task.Version == 0 {
			task.Version = 1
		}
		if task.Status == "" {
			task.Status = domain.StatusPending
		}

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO tasks (%s)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, taskColumns),
			string(task.ID), string(task.Type), int(task.Priority), task.ReferenceID, task.SecondaryReferenceID, task.Description,
			string(task.Status), rawOrEmpty(task.Payload), rawOrEmpty(task.Metadata), formatTime(task.ScheduledTime), formatTimePtr(task.ExpiresAt), task.CronExpression,
			task.RetryCount, task.MaxRetries, task.RetryDelayHours, task.LockedBy, formatTimePtr(task.LockedUntil), task.Version,
			formatTime(task.CreatedAt), formatTime(task.UpdatedAt), formatTimePtr(task.StartedAt), formatTimePtr(task.CompletedAt), task.ExecutionDurationMS,
			task.LastError, task.LastErrorStackTrace, nullableJSON(task.ExecutionResult),
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		result = task
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, existed, nil
}

func findNonTerminalDuplicate(ctx context.Context, tx *sql.Tx, referenceID string, taskType domain.TaskType) (*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE reference_id = ? AND type = ?
		  AND status NOT IN ('COMPLETED', 'CANCELLED', 'EXPIRED', 'MAX_RETRIES_EXCEEDED', 'DEAD_LETTER')
		ORDER BY created_at DESC
		LIMIT 1`, taskColumns)

	row := tx.QueryRowContext(ctx, query, referenceID, string(taskType))
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check duplicate task: %w", err)
	}
	return task, nil
}

// SearchTasks implements GET /tasks over SQLite.
func (s *Store) SearchTasks(ctx context.Context, params scheduler.SearchParams) ([]*domain.Task, error) {
	var conditions []string
	var args []any

	if params.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*params.Status))
	}
	if params.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*params.Type))
	}
	if params.ReferenceID != nil {
		conditions = append(conditions, "reference_id = ?")
		args = append(args, *params.ReferenceID)
	}
	if params.Priority != nil {
		conditions = append(conditions, "priority = ?")
		args = append(args, int(*params.Priority))
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		%s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, taskColumns, where)
	args = append(args, limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan search results: %w", err)
	}
	return tasks, nil
}

// ListExecutionLogs implements GET /tasks/{id}/logs.
func (s *Store) ListExecutionLogs(ctx context.Context, taskID domain.TaskID) ([]*domain.ExecutionLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM execution_logs
		WHERE task_id = ?
		ORDER BY attempt_number DESC`, executionLogColumns)

	rows, err := s.db.QueryContext(ctx, query, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("list execution logs for task %s: %w", taskID, err)
	}
	logs, err := scanExecutionLogs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan execution logs: %w", err)
	}
	return logs, nil
}

// UpdateTaskState implements the cancel/pause/resume/retry/retry-now
// operator commands over SQLite, mirroring postgres.Store's version-guarded
// read-modify-write.
func (s *Store) UpdateTaskState(ctx context.Context, taskID domain.TaskID, fn func(*domain.Task) error) (*domain.Task, error) {
	var result *domain.Task

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = ?`, taskColumns)
		row := tx.QueryRowContext(ctx, query, string(taskID))
		task, err := scanTask(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrTaskNotFound
			}
			return fmt.Errorf("load task %s: %w", taskID, err)
		}

		originalVersion := task.Version
		if err := fn(task); err != nil {
			return err
		}
		task.Version++
		task.UpdatedAt = nowUTC()

		result2, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?,
			    scheduled_time = ?,
			    expires_at = ?,
			    retry_count = ?,
			    max_retries = ?,
			    retry_delay_hours = ?,
			    locked_by = ?,
			    locked_until = ?,
			    version = ?,
			    updated_at = ?,
			    completed_at = ?,
			    last_error = ?,
			    last_error_stack_trace = ?
			WHERE id = ? AND version = ?`,
			string(task.Status), formatTime(task.ScheduledTime), formatTimePtr(task.ExpiresAt),
			task.RetryCount, task.MaxRetries, task.RetryDelayHours,
			task.LockedBy, formatTimePtr(task.LockedUntil), task.Version, formatTime(task.UpdatedAt),
			formatTimePtr(task.CompletedAt), task.LastError, task.LastErrorStackTrace,
			string(taskID), originalVersion,
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		n, err := result2.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		if n == 0 {
			return domain.ErrVersionConflict
		}

		result = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
