package httpapi

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// fakeWriter is an in-memory scheduler.TaskWriter used to exercise the
// router/handlers without a real store.
type fakeWriter struct {
	mu       sync.Mutex
	tasks    map[domain.TaskID]*domain.Task
	logs     map[domain.TaskID][]*domain.ExecutionLog
	notified []domain.TaskID
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		tasks: make(map[domain.TaskID]*domain.Task),
		logs:  make(map[domain.TaskID][]*domain.ExecutionLog),
	}
}

func (f *fakeWriter) CreateTask(_ context.Context, task *domain.Task, policy domain.DuplicatePolicy) (*domain.Task, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.tasks {
		if existing.ReferenceID == task.ReferenceID && existing.Type == task.Type && !existing.Status.IsTerminal() {
			if policy == domain.DuplicatePolicyReturnExisting {
				return existing, true, nil
			}
			return nil, false, domain.ErrDuplicateTask
		}
	}

	if task.ID == "" {
		task.ID = domain.TaskID(uuid.NewString())
	}
	task.Version = 1
	f.tasks[task.ID] = task
	return task, false, nil
}

func (f *fakeWriter) GetTask(_ context.Context, taskID domain.TaskID) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeWriter) SearchTasks(_ context.Context, params scheduler.SearchParams) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Task
	for _, task := range f.tasks {
		if params.Status != nil && task.Status != *params.Status {
			continue
		}
		if params.Type != nil && task.Type != *params.Type {
			continue
		}
		if params.ReferenceID != nil && task.ReferenceID != *params.ReferenceID {
			continue
		}
		if params.Priority != nil && task.Priority != *params.Priority {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (f *fakeWriter) ListExecutionLogs(_ context.Context, taskID domain.TaskID) ([]*domain.ExecutionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[taskID], nil
}

func (f *fakeWriter) UpdateTaskState(_ context.Context, taskID domain.TaskID, fn func(*domain.Task) error) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	task, ok := f.tasks[taskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if err := fn(task); err != nil {
		return nil, err
	}
	task.Version++
	return task, nil
}

func (f *fakeWriter) NotifyDispatch(_ context.Context, taskID domain.TaskID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, taskID)
	return nil
}

var _ scheduler.TaskWriter = (*fakeWriter)(nil)
