package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// FetchReadyTasks implements S1 (spec §4.1, §4.2): a SKIP LOCKED batch read
// ordered by priority DESC, scheduled_time ASC, restricted to the
// executable statuses and due tasks. The FOR UPDATE SKIP LOCKED lock is
// released implicitly at the end of this single-statement, auto-commit
// query; it exists purely to let concurrent pollers avoid returning the
// same row before either has claimed it.
func (s *Store) FetchReadyTasks(ctx context.Context, params scheduler.FetchParams) ([]*domain.Task, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE status IN ('PENDING', 'SCHEDULED', 'FAILED', 'RETRY_PENDING')
		  AND scheduled_time <= $1
		  AND (locked_until IS NULL OR locked_until < $1)
		  AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY priority DESC, scheduled_time ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, taskColumns)

	rows, err := s.pool.Query(ctx, query, params.Now, params.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("fetch ready tasks: %w", err)
	}
	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("scan ready tasks: %w", err)
	}
	return tasks, nil
}

// ClaimTask implements the conditional update of spec §4.3 step 1: it only
// succeeds when version matches and the row is either unlocked or its lock
// has expired. Zero rows affected (ClaimResult{Task: nil}, nil error) means
// the race was lost to a concurrent executor and the caller should abort
// silently rather than treat it as a failure.
func (s *Store) ClaimTask(ctx context.Context, taskID domain.TaskID, version int64, instanceID string, lockDuration time.Duration, now time.Time) (*scheduler.ClaimResult, error) {
	lockUntil := now.Add(lockDuration)
	query := fmt.Sprintf(`
		UPDATE tasks
		SET status = 'PROCESSING',
		    locked_by = $1,
		    locked_until = $2,
		    version = version + 1,
		    started_at = $3,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
		  AND (locked_by IS NULL OR locked_until < $3)
		RETURNING %s`, taskColumns)

	row := s.pool.QueryRow(ctx, query, instanceID, lockUntil, now, string(taskID), version)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &scheduler.ClaimResult{Task: nil}, nil
		}
		return nil, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	return &scheduler.ClaimResult{Task: task}, nil
}

// GetTask implements S4: a strong, read-your-writes single-row read.
func (s *Store) GetTask(ctx context.Context, taskID domain.TaskID) (*domain.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	row := s.pool.QueryRow(ctx, query, string(taskID))
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return task, nil
}

// Commit implements spec §4.3 steps 2-8's single transactional boundary:
// the execution log insert and the task row mutation succeed or fail
// together. The task UPDATE carries no version predicate here because the
// row is already owned by this executor via ClaimTask's lock — the commit
// only ever races the Reaper, which Commit's ClearLock write simply
// overwrites (last writer wins, matching the teacher's lock-ownership
// convention for its worker claim/complete pair).
func (s *Store) Commit(ctx context.Context, taskID domain.TaskID, outcome scheduler.CommitOutcome) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if outcome.Log != nil {
			if err := insertExecutionLog(ctx, tx, outcome.Log); err != nil {
				return fmt.Errorf("insert execution log: %w", err)
			}
		}

		// ClearLock is always true for the outcomes Commit is called with
		// (spec §4.3 steps 2-8 never leave a task PROCESSING); the lock
		// columns are unconditionally released here.
		tag, err := tx.Exec(ctx, `
			UPDATE tasks
			SET status = $1,
			    completed_at = $2,
			    execution_result = $3::jsonb,
			    last_error = $4,
			    last_error_stack_trace = $5,
			    execution_duration_ms = $6,
			    retry_count = $7,
			    scheduled_time = CASE WHEN $8::timestamptz IS NULL THEN scheduled_time ELSE $8 END,
			    locked_by = $9,
			    locked_until = $10,
			    version = version + 1,
			    updated_at = now()
			WHERE id = $11`,
			string(outcome.NewStatus), outcome.CompletedAt, nullableJSON(outcome.ExecutionResult),
			outcome.LastError, outcome.LastErrorStack, outcome.DurationMS,
			outcome.RetryCount, nullableTime(outcome.NewStatus, outcome.NextScheduledTime),
			(*string)(nil), (*time.Time)(nil), string(taskID),
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", taskID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLockLost
		}
		return nil
	})
}

// nullableTime returns nil unless status is RETRY_PENDING, in which case
// the caller's computed NextScheduledTime is the new scheduled_time.
func nullableTime(status domain.Status, t time.Time) any {
	if status != domain.StatusRetryPending {
		return nil
	}
	return t
}

func nullableJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func insertExecutionLog(ctx context.Context, tx pgx.Tx, log *domain.ExecutionLog) error {
	_, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO execution_logs (%s)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`, executionLogColumns),
		log.ID, string(log.TaskID), log.AttemptNumber, string(log.Status), log.ExecutorInstance, log.StartedAt,
		log.CompletedAt, log.DurationMS, log.Success, log.ErrorMessage, log.ErrorStackTrace, log.ErrorType,
		log.HTTPStatusCode, nullableJSON(log.RequestPayload), nullableJSON(log.ResponsePayload),
	)
	return err
}

// ReapStale implements spec §4.5: a bulk conditional update resetting any
// PROCESSING task whose lock expired more than staleThreshold ago back to
// RETRY_PENDING (treated the same as an executor crash mid-attempt) so the
// Poller picks it up again on its next tick.
func (s *Store) ReapStale(ctx context.Context, staleThreshold time.Duration, now time.Time) (int, error) {
	cutoff := now.Add(-staleThreshold)
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = 'RETRY_PENDING',
		    locked_by = NULL,
		    locked_until = NULL,
		    version = version + 1,
		    updated_at = $2,
		    last_error = 'reaped: executor lock went stale'
		WHERE status = 'PROCESSING'
		  AND locked_until IS NOT NULL
		  AND locked_until < $1`, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("reap stale tasks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
