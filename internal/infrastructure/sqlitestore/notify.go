package sqlitestore

import (
	"context"

	"github.com/taskscheduler/engine/internal/domain"
)

// NotifyDispatch and SubscribeDispatchRequests implement the out-of-band
// immediate-dispatch signal spec.md §6 retry-now asks for ("trigger one
// immediate dispatch cycle for that task id"). SQLite has no LISTEN/NOTIFY
// equivalent and this store's single-process, single-connection nature
// (see connection.go) gives it no other cross-replica push primitive
// either, so both halves are honest no-ops here: NotifyDispatch is a
// silent success, and the subscription channel is simply never written
// to. A retry-now call against this store still takes effect — the task
// is set PENDING with scheduled_time=now — it just waits out the regular
// poll interval like any other PENDING task, rather than dispatching
// immediately. Only the postgres store (internal/infrastructure/postgres)
// implements the real channel, via pg_notify/LISTEN.
func (s *Store) NotifyDispatch(ctx context.Context, taskID domain.TaskID) error {
	return nil
}

// SubscribeDispatchRequests returns a channel that is never sent to or
// closed; selecting on it alongside a ticker is a permanent no-op branch,
// which is exactly the fallback-to-poll-interval behavior described above.
func (s *Store) SubscribeDispatchRequests(ctx context.Context) (<-chan domain.TaskID, error) {
	return make(chan domain.TaskID), nil
}
