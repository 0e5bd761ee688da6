package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskscheduler/engine/internal/domain"
)

// Poller drives the tick loop of spec §4.2: every PollInterval, guarded by
// the cluster mutex MutexTaskPolling, it fetches a batch of ready tasks and
// dispatches each to the Executor under a bounded-concurrency semaphore.
type Poller struct {
	repo       Repository
	executor   *Executor
	instanceID string
	cfg        Config

	ticking atomic.Bool // local re-entrancy guard (single-flight per replica)
	wg      sync.WaitGroup
	sem     chan struct{} // bounds total concurrent executions (batch + immediate-dispatch) to cfg.ExecutorPoolSize
}

// NewPoller builds a Poller sharing the given Executor across every
// dispatched task.
func NewPoller(repo Repository, executor *Executor, instanceID string, cfg Config) *Poller {
	return &Poller{repo: repo, executor: executor, instanceID: instanceID, cfg: cfg, sem: make(chan struct{}, cfg.ExecutorPoolSize)}
}

// Run blocks, ticking every cfg.PollInterval, until ctx is cancelled. On
// cancellation it stops accepting new batches and waits (up to
// cfg.ShutdownGrace) for in-flight executions to finish before returning.
// It also subscribes to the Repository's out-of-band dispatch-request
// channel (spec.md §6 retry-now: "trigger one immediate dispatch cycle
// for that task id"), dispatching each notified task as soon as it
// arrives rather than waiting for the next tick.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	dispatchRequests, err := p.repo.SubscribeDispatchRequests(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to subscribe to immediate-dispatch requests, falling back to poll-interval cadence only", "error", err)
		dispatchRequests = nil
	}

	for {
		select {
		case <-ctx.Done():
			p.awaitShutdown()
			return
		case <-ticker.C:
			p.tick(ctx)
		case taskID, ok := <-dispatchRequests:
			if !ok {
				dispatchRequests = nil
				continue
			}
			p.dispatchOne(ctx, taskID)
		}
	}
}

func (p *Poller) awaitShutdown() {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownGrace):
		slog.Warn("poller shutdown grace period elapsed with executions still in flight")
	}
}

func (p *Poller) tick(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "scheduler.poll_tick")
	defer span.End()

	if !p.ticking.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "skipping poll tick: previous tick still running")
		return
	}
	defer p.ticking.Store(false)

	acquired, err := p.repo.TryAcquireClusterMutex(ctx, domain.MutexTaskPolling, p.instanceID, p.cfg.ClusterMutexLease, time.Now().UTC())
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire polling mutex", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := p.repo.ReleaseClusterMutex(ctx, domain.MutexTaskPolling, p.instanceID); err != nil {
			slog.WarnContext(ctx, "failed to release polling mutex", "error", err)
		}
	}()

	now := time.Now().UTC()
	tasks, err := p.repo.FetchReadyTasks(ctx, FetchParams{Now: now, BatchSize: p.cfg.BatchSize})
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch ready tasks", "error", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	p.dispatchBatch(ctx, tasks)
}

// dispatchBatch spawns one goroutine per task, bounded by
// cfg.ExecutorPoolSize, and awaits the whole batch before returning (spec
// §4.2: "The Poller awaits completion of the entire batch... then releases
// its mutex").
func (p *Poller) dispatchBatch(ctx context.Context, tasks []*domain.Task) {
	var batchWG sync.WaitGroup

	for _, task := range tasks {
		task := task
		batchWG.Add(1)
		p.wg.Add(1)
		p.sem <- struct{}{}
		go func() {
			defer func() { <-p.sem; batchWG.Done(); p.wg.Done() }()
			if err := p.executor.Run(ctx, task.ID, task.Version); err != nil {
				slog.ErrorContext(ctx, "executor run failed", "task_id", task.ID, "error", err)
			}
		}()
	}

	batchWG.Wait()
}

// dispatchOne executes a single task outside the regular batch cycle, in
// response to a notification from SubscribeDispatchRequests. It shares
// p.sem with dispatchBatch so an immediate dispatch never pushes total
// concurrency past cfg.ExecutorPoolSize, and it does not block the poll
// loop waiting for a free slot — acquiring the semaphore happens inside
// the spawned goroutine, matching the spec's description of retry-now as
// triggering a dispatch cycle rather than a synchronous execution.
func (p *Poller) dispatchOne(ctx context.Context, taskID domain.TaskID) {
	task, err := p.repo.GetTask(ctx, taskID)
	if err != nil {
		slog.WarnContext(ctx, "immediate-dispatch lookup failed", "task_id", taskID, "error", err)
		return
	}
	if !task.Status.Executable() {
		slog.DebugContext(ctx, "immediate-dispatch request for non-executable task ignored", "task_id", taskID, "status", task.Status)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-p.sem }()
		if err := p.executor.Run(ctx, task.ID, task.Version); err != nil {
			slog.ErrorContext(ctx, "executor run failed", "task_id", task.ID, "error", err)
		}
	}()
}
