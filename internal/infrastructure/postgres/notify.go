package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taskscheduler/engine/internal/domain"
)

// dispatchChannel is the LISTEN/NOTIFY channel used to push an immediate
// dispatch signal to subscribed Pollers, grounded on the teacher's
// job_cancellations channel in
// internal/infrastructure/persistence/postgres/coordinator.go
// (CancelJob / SubscribeToCancellations). Where the teacher notifies on
// cancellation, this store notifies on retry-now (spec.md §6: "trigger
// one immediate dispatch cycle for that task id").
const dispatchChannel = "task_dispatch_requests"

// NotifyDispatch implements scheduler.TaskWriter's push side: a
// best-effort pg_notify so any Poller currently subscribed via
// SubscribeDispatchRequests dispatches taskID before its next regular
// tick. A delivery failure is returned to the caller, but per spec.md
// §6 the caller (internal/infrastructure/httpapi) must only log it —
// the task is already PENDING and will be picked up by the next poll
// tick regardless.
func (s *Store) NotifyDispatch(ctx context.Context, taskID domain.TaskID) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, dispatchChannel, taskID.String()); err != nil {
		return fmt.Errorf("notify dispatch for task %s: %w", taskID, err)
	}
	return nil
}

// SubscribeDispatchRequests implements scheduler.Repository's pull side:
// a dedicated connection LISTENing on dispatchChannel, adapted from the
// teacher's SubscribeToCancellations. The returned channel is closed when
// ctx is cancelled; a notification with an empty payload is skipped
// without being logged, since a single malformed notification must not
// take down the subscription.
func (s *Store) SubscribeDispatchRequests(ctx context.Context) (<-chan domain.TaskID, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch-listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+dispatchChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen on %s: %w", dispatchChannel, err)
	}

	ch := make(chan domain.TaskID, 16)

	go func() {
		defer close(ch)
		defer conn.Release()
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN "+dispatchChannel)
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "dispatch-request notification wait failed", "error", err)
				continue
			}
			if notification.Payload == "" {
				continue
			}
			select {
			case ch <- domain.TaskID(notification.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
