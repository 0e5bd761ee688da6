// Package response formats the inbound HTTP surface's JSON responses and
// maps internal/domain sentinel errors to HTTP status codes, adapted from
// the teacher's internal/http/response/{success,error}.go.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taskscheduler/engine/internal/domain"
)

// ErrorResponse is the standard error response envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK sends a 200 OK response with JSON data.
func OK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode success response", "error", err)
	}
}

// Created sends a 201 Created response with JSON data.
func Created(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode created response", "error", err)
	}
}

// Error sends a generic error response.
func Error(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, "VALIDATION_ERROR", message, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, resource string) {
	Error(w, "NOT_FOUND", resource+" not found", http.StatusNotFound)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, "CONFLICT", message, http.StatusConflict)
}

func BadGateway(w http.ResponseWriter, message string) {
	Error(w, "UPSTREAM_FAILURE", message, http.StatusBadGateway)
}

// InternalError logs err server-side and returns a generic message to the
// client, matching the teacher's information-disclosure convention.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		slog.ErrorContext(r.Context(), "internal server error", "error", err)
	}
	Error(w, "INTERNAL_ERROR", "an internal error occurred", http.StatusInternalServerError)
}

// FromDomainError maps internal/domain sentinel errors to HTTP responses
// per the error taxonomy of SPEC_FULL.md §6.1: not-found -> 404,
// duplicate/invalid-state -> 409, validation -> 400, everything else -> 500.
// Upstream-failure (502) is not reachable from a domain error; BadGateway
// writes that response but no route in this module calls it.
func FromDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		NotFound(w, "task")
	case errors.Is(err, domain.ErrReferenceIDRequired):
		BadRequest(w, "reference_id is required")
	case errors.Is(err, domain.ErrInvalidTaskType):
		BadRequest(w, "invalid task type")
	case errors.Is(err, domain.ErrInvalidTaskStatus):
		BadRequest(w, "invalid task status")
	case errors.Is(err, domain.ErrInvalidPriority):
		BadRequest(w, "invalid task priority")
	case errors.Is(err, domain.ErrDuplicateTask):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrTaskLocked):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrTaskTerminal):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrInvalidStateTransition):
		Conflict(w, err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		Conflict(w, err.Error())
	default:
		InternalError(w, r, err)
	}
}
