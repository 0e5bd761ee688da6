package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
	"github.com/taskscheduler/engine/internal/infrastructure/httpapi/response"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// handleCreateTask implements POST /tasks (spec §6.1). The HTTP surface's
// default duplicate policy is DuplicatePolicyReturnExisting (SPEC_FULL.md
// §9's Open Question decision): a caller explicitly asking for rejection
// sets duplicate_policy="reject".
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "malformed request body: "+err.Error())
		return
	}

	taskType, err := domain.NewTaskType(req.Type)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	priority, err := domain.NewPriority(req.Priority)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if req.ReferenceID == "" {
		response.FromDomainError(w, r, domain.ErrReferenceIDRequired)
		return
	}

	now := time.Now().UTC()
	scheduledTime := now
	status := domain.StatusPending
	if req.ScheduledTime != nil {
		scheduledTime = req.ScheduledTime.UTC()
		if scheduledTime.After(now) {
			status = domain.StatusScheduled
		}
	}

	task := &domain.Task{
		Type:                 taskType,
		Priority:             priority,
		ReferenceID:          req.ReferenceID,
		SecondaryReferenceID: req.SecondaryReferenceID,
		Description:          req.Description,
		Status:               status,
		Payload:              req.Payload,
		Metadata:             req.Metadata,
		ScheduledTime:        scheduledTime,
		ExpiresAt:            req.ExpiresAt,
		MaxRetries:           req.MaxRetries,
		RetryDelayHours:      req.RetryDelayHours,
	}

	policy := domain.DuplicatePolicyReturnExisting
	if req.DuplicatePolicy == "reject" || req.PreventDuplicates {
		policy = domain.DuplicatePolicyReject
	}

	created, existed, err := s.writer.CreateTask(r.Context(), task, policy)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if existed {
		w.Header().Set("X-Duplicate-Of", created.ID.String())
		response.OK(w, toTaskResponse(created))
		return
	}
	response.Created(w, toTaskResponse(created))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.GetTask(r.Context(), taskID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toTaskResponse(task))
}

// handleSearchTasks implements GET /tasks (spec §6.1): status/type/
// reference_id/priority filters plus limit/offset pagination.
func (s *Server) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params scheduler.SearchParams

	if v := q.Get("status"); v != "" {
		status, err := domain.NewStatus(v)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.Status = &status
	}
	if v := q.Get("type"); v != "" {
		taskType, err := domain.NewTaskType(v)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.Type = &taskType
	}
	if v := q.Get("reference_id"); v != "" {
		params.ReferenceID = &v
	}
	if v := q.Get("priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "priority must be an integer")
			return
		}
		priority, err := domain.NewPriority(n)
		if err != nil {
			response.FromDomainError(w, r, err)
			return
		}
		params.Priority = &priority
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "limit must be a non-negative integer")
			return
		}
		params.Limit = n
	}
	// cursor is accepted as an opaque page offset (spec §6.1 names it
	// "cursor"; this implementation realizes it as an integer row offset).
	if v := q.Get("cursor"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.BadRequest(w, "cursor must be a non-negative integer")
			return
		}
		params.Offset = n
	}

	tasks, err := s.writer.SearchTasks(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	response.OK(w, out)
}

func (s *Server) handleListExecutionLogs(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	logs, err := s.writer.ListExecutionLogs(r.Context(), taskID)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	out := make([]executionLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toExecutionLogResponse(l))
	}
	response.OK(w, out)
}

// handleCancel implements POST /tasks/{id}/cancel (spec §6, line 197):
// refused if terminal or currently locked.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "malformed request body: "+err.Error())
		return
	}

	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.UpdateTaskState(r.Context(), taskID, func(t *domain.Task) error {
		now := time.Now().UTC()
		if t.Status.IsTerminal() {
			return domain.ErrTaskTerminal
		}
		if t.IsLocked(now) {
			return domain.ErrTaskLocked
		}
		t.Status = domain.StatusCancelled
		t.CompletedAt = &now
		msg := "Cancelled: " + req.Reason
		t.LastError = &msg
		return nil
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toTaskResponse(task))
}

// handlePause implements POST /tasks/{id}/pause (spec §6, line 198):
// refused if terminal or locked.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.UpdateTaskState(r.Context(), taskID, func(t *domain.Task) error {
		now := time.Now().UTC()
		if t.Status.IsTerminal() {
			return domain.ErrTaskTerminal
		}
		if t.IsLocked(now) {
			return domain.ErrTaskLocked
		}
		t.Status = domain.StatusPaused
		return nil
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toTaskResponse(task))
}

// handleResume implements POST /tasks/{id}/resume (spec §6, line 199):
// refused unless PAUSED.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.UpdateTaskState(r.Context(), taskID, func(t *domain.Task) error {
		if t.Status != domain.StatusPaused {
			return domain.ErrInvalidStateTransition
		}
		t.Status = domain.StatusPending
		t.ScheduledTime = time.Now().UTC()
		return nil
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toTaskResponse(task))
}

// isRetryableState reports whether t is in a failure state or PAUSED, the
// shared precondition for retry and retry-now (spec §6, lines 200-201).
func isRetryableState(t *domain.Task) bool {
	switch t.Status {
	case domain.StatusFailed, domain.StatusPaused, domain.StatusMaxRetriesExceeded, domain.StatusDeadLetter:
		return true
	default:
		return false
	}
}

// handleRetry implements POST /tasks/{id}/retry (spec §6, line 200).
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "malformed request body: "+err.Error())
		return
	}

	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.UpdateTaskState(r.Context(), taskID, func(t *domain.Task) error {
		if !isRetryableState(t) {
			return domain.ErrInvalidStateTransition
		}
		scheduledTime := time.Now().UTC()
		if req.ScheduledTime != nil {
			scheduledTime = req.ScheduledTime.UTC()
		}
		t.Status = domain.StatusRetryPending
		t.ScheduledTime = scheduledTime
		t.LockedBy = nil
		t.LockedUntil = nil
		return nil
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, toTaskResponse(task))
}

// handleRetryNow implements POST /tasks/{id}/retry-now (spec §6, line 201):
// same precondition as retry, but PENDING/now rather than RETRY_PENDING,
// plus a push through TaskWriter.NotifyDispatch to trigger an immediate
// dispatch cycle for this task id, per spec.md:201, rather than waiting
// for the next poll tick. Delivery of that push is best-effort — a
// subscribed Poller (internal/application/scheduler.Poller) dispatches
// the task as soon as the notification arrives; if no Poller is
// subscribed, or the store cannot push at all
// (internal/infrastructure/sqlitestore), the task still dispatches no
// later than the next regular poll tick, since it is already PENDING.
func (s *Server) handleRetryNow(w http.ResponseWriter, r *http.Request) {
	taskID := domain.TaskID(chi.URLParam(r, "taskID"))
	task, err := s.writer.UpdateTaskState(r.Context(), taskID, func(t *domain.Task) error {
		if !isRetryableState(t) {
			return domain.ErrInvalidStateTransition
		}
		t.Status = domain.StatusPending
		t.ScheduledTime = time.Now().UTC()
		t.LockedBy = nil
		t.LockedUntil = nil
		return nil
	})
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if err := s.writer.NotifyDispatch(r.Context(), task.ID); err != nil {
		slog.WarnContext(r.Context(), "immediate-dispatch notification failed, task will dispatch on the next poll tick instead", "task_id", task.ID, "error", err)
	}

	response.OK(w, toTaskResponse(task))
}
