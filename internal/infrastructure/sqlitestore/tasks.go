package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// FetchReadyTasks implements S1 over SQLite. There is no SKIP LOCKED
// equivalent; the single-connection pool (see connection.go) already
// serializes every statement this store runs, so a plain ordered SELECT
// is race-free for this store's single-process use case.
func (s *Store) FetchReadyTasks(ctx context.Context, params scheduler.FetchParams) ([]*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE status IN ('PENDING', 'SCHEDULED', 'FAILED', 'RETRY_PENDING')
		  AND scheduled_time <= ?
		  AND (locked_until IS NULL OR locked_until < ?)
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY priority DESC, scheduled_time ASC
		LIMIT ?`, taskColumns)

	now := formatTime(params.Now)
	rows, err := s.db.QueryContext(ctx, query, now, now, now, params.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch ready tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan ready tasks: %w", err)
	}
	return tasks, nil
}

// ClaimTask implements the conditional update of spec §4.3 step 1.
func (s *Store) ClaimTask(ctx context.Context, taskID domain.TaskID, version int64, instanceID string, lockDuration time.Duration, now time.Time) (*scheduler.ClaimResult, error) {
	lockUntil := now.Add(lockDuration)
	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = 'PROCESSING',
		    locked_by = ?,
		    locked_until = ?,
		    version = version + 1,
		    started_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND version = ?
		  AND (locked_by IS NULL OR locked_until < ?)
		RETURNING %s`, taskColumns)

	nowStr := formatTime(now)
	row := s.db.QueryRowContext(ctx, query, instanceID, formatTime(lockUntil), nowStr, nowStr, string(taskID), version, nowStr)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &scheduler.ClaimResult{Task: nil}, nil
		}
		return nil, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	return &scheduler.ClaimResult{Task: task}, nil
}

// GetTask implements S4.
func (s *Store) GetTask(ctx context.Context, taskID domain.TaskID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = ?`, taskColumns)
	row := s.db.QueryRowContext(ctx, query, string(taskID))
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// Commit implements spec §4.3 steps 2-8's single transactional boundary.
func (s *Store) Commit(ctx context.Context, taskID domain.TaskID, outcome scheduler.CommitOutcome) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if outcome.Log != nil {
			if err := insertExecutionLog(ctx, tx, outcome.Log); err != nil {
				return fmt.Errorf("insert execution log: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE tasks
			SET status = ?,
			    completed_at = ?,
			    execution_result = ?,
			    last_error = ?,
			    last_error_stack_trace = ?,
			    execution_duration_ms = ?,
			    retry_count = ?,
			    scheduled_time = COALESCE(?, scheduled_time),
			    locked_by = NULL,
			    locked_until = NULL,
			    version = version + 1,
			    updated_at = ?
			WHERE id = ?`,
			string(outcome.NewStatus), formatTimePtr(outcome.CompletedAt), nullableJSON(outcome.ExecutionResult),
			outcome.LastError, outcome.LastErrorStack, outcome.DurationMS,
			outcome.RetryCount, nullableTime(outcome.NewStatus, outcome.NextScheduledTime),
			formatTime(nowUTC()), string(taskID),
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		if n == 0 {
			return domain.ErrLockLost
		}
		return nil
	})
}

// nullableTime returns a NULL-able value unless status is RETRY_PENDING, in
// which case the caller's computed NextScheduledTime is the new
// scheduled_time.
func nullableTime(status domain.Status, t time.Time) sql.NullString {
	if status != domain.StatusRetryPending {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func insertExecutionLog(ctx context.Context, tx *sql.Tx, log *domain.ExecutionLog) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO execution_logs (%s)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, executionLogColumns),
		log.ID, string(log.TaskID), log.AttemptNumber, string(log.Status), log.ExecutorInstance, formatTime(log.StartedAt),
		formatTimePtr(log.CompletedAt), log.DurationMS, log.Success, log.ErrorMessage, log.ErrorStackTrace, log.ErrorType,
		log.HTTPStatusCode, nullableJSON(log.RequestPayload), nullableJSON(log.ResponsePayload),
	)
	return err
}

// ReapStale implements spec §4.5.
func (s *Store) ReapStale(ctx context.Context, staleThreshold time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-staleThreshold)
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'RETRY_PENDING',
		    locked_by = NULL,
		    locked_until = NULL,
		    version = version + 1,
		    updated_at = ?,
		    last_error = 'reaped: executor lock went stale'
		WHERE status = 'PROCESSING'
		  AND locked_until IS NOT NULL
		  AND locked_until < ?`, formatTime(now), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("reap stale tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reap stale tasks: %w", err)
	}
	return int(n), nil
}
