package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// CreateTask implements invariant I5: within one transaction it checks for
// a non-terminal row already sharing (reference_id, type) and, per policy,
// either rejects the insert, idempotently returns the existing row, or
// (no conflict found) inserts the new task. The boolean return reports
// whether an existing row was returned instead of a new insert, so the
// HTTP layer can choose 200 vs 201.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task, policy domain.DuplicatePolicy) (*domain.Task, bool, error) {
	if task.ReferenceID == "" {
		return nil, false, domain.ErrReferenceIDRequired
	}
	if task.ID == "" {
		task.ID = domain.TaskID(uuid.NewString())
	}

	var result *domain.Task
	var existed bool

	err := s.withTx(ctx, func(tx pgx.Tx) error {
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

		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (
				id, type, priority, reference_id, secondary_reference_id, description,
				status, payload, metadata, scheduled_time, expires_at, cron_expression,
				retry_count, max_retries, retry_delay_hours, locked_by, locked_until, version,
				created_at, updated_at, started_at, completed_at, execution_duration_ms,
				last_error, last_error_stack_trace, execution_result
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::jsonb,$10,$11,$12,
				$13,$14,$15,$16,$17,$18,
				$19,$20,$21,$22,$23,
				$24,$25,$26::jsonb
			)`,
			string(task.ID), string(task.Type), int(task.Priority), task.ReferenceID, task.SecondaryReferenceID, task.Description,
			string(task.Status), rawOrEmpty(task.Payload), rawOrEmpty(task.Metadata), task.ScheduledTime, task.ExpiresAt, task.CronExpression,
			task.RetryCount, task.MaxRetries, task.RetryDelayHours, task.LockedBy, task.LockedUntil, task.Version,
			task.CreatedAt, task.UpdatedAt, task.StartedAt, task.CompletedAt, task.ExecutionDurationMS,
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

func findNonTerminalDuplicate(ctx context.Context, tx pgx.Tx, referenceID string, taskType domain.TaskType) (*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE reference_id = $1 AND type = $2
		  AND status NOT IN ('COMPLETED', 'CANCELLED', 'EXPIRED', 'MAX_RETRIES_EXCEEDED', 'DEAD_LETTER')
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, taskColumns)

	row := tx.QueryRow(ctx, query, referenceID, string(taskType))
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check duplicate task: %w", err)
	}
	return task, nil
}

// SearchTasks implements GET /tasks (spec §6.1): a filtered, paginated
// list ordered newest-first.
func (s *Store) SearchTasks(ctx context.Context, params scheduler.SearchParams) ([]*domain.Task, error) {
	var conditions []string
	var args []any
	argN := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argN))
		args = append(args, string(*params.Status))
		argN++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argN))
		args = append(args, string(*params.Type))
		argN++
	}
	if params.ReferenceID != nil {
		conditions = append(conditions, fmt.Sprintf("reference_id = $%d", argN))
		args = append(args, *params.ReferenceID)
		argN++
	}
	if params.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argN))
		args = append(args, int(*params.Priority))
		argN++
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
		LIMIT $%d OFFSET $%d`, taskColumns, where, argN, argN+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan search results: %w", err)
	}
	return tasks, nil
}

// ListExecutionLogs implements GET /tasks/{id}/logs, newest attempt first.
func (s *Store) ListExecutionLogs(ctx context.Context, taskID domain.TaskID) ([]*domain.ExecutionLog, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM execution_logs
		WHERE task_id = $1
		ORDER BY attempt_number DESC`, executionLogColumns)

	rows, err := s.pool.Query(ctx, query, string(taskID))
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
// operator commands (spec §6.1, §6.2): it loads the row FOR UPDATE, lets
// fn validate and mutate the in-memory Task, then writes every mutable
// column back inside the same transaction, guarded by the optimistic
// version the row carried when fn ran.
func (s *Store) UpdateTaskState(ctx context.Context, taskID domain.TaskID, fn func(*domain.Task) error) (*domain.Task, error) {
	var result *domain.Task

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1 FOR UPDATE`, taskColumns)
		row := tx.QueryRow(ctx, query, string(taskID))
		task, err := scanTask(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
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

		tag, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = $1,
			    scheduled_time = $2,
			    expires_at = $3,
			    retry_count = $4,
			    max_retries = $5,
			    retry_delay_hours = $6,
			    locked_by = $7,
			    locked_until = $8,
			    version = $9,
			    updated_at = $10,
			    completed_at = $11,
			    last_error = $12,
			    last_error_stack_trace = $13
			WHERE id = $14 AND version = $15`,
			string(task.Status), task.ScheduledTime, task.ExpiresAt,
			task.RetryCount, task.MaxRetries, task.RetryDelayHours,
			task.LockedBy, task.LockedUntil, task.Version, task.UpdatedAt,
			task.CompletedAt, task.LastError, task.LastErrorStackTrace,
			string(taskID), originalVersion,
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		if tag.RowsAffected() == 0 {
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
