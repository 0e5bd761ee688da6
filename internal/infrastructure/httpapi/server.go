// Package httpapi is the inbound HTTP CRUD/state-command surface (spec
// §6.1), a go-chi/chi/v5 router wrapping an application-layer
// scheduler.TaskWriter, adapted from the teacher's internal/http and
// internal/infrastructure/http packages (router.go, handler/item.go,
// handler/server.go, middleware/validation.go).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskscheduler/engine/internal/application/scheduler"
)

// Server holds the dependencies every route handler needs, mirroring the
// teacher's handler.Server grouping-by-receiver convention.
type Server struct {
	writer scheduler.TaskWriter
}

// NewServer builds a Server over the given TaskWriter.
func NewServer(writer scheduler.TaskWriter) *Server {
	return &Server{writer: writer}
}

// Config tunes the router's own middleware, independent of the engine's
// scheduler.Config.
type Config struct {
	MaxBodyBytes int64
}

// NewRouter builds the chi.Mux exposing every route named in SPEC_FULL.md
// §6.1, with the teacher's standard middleware stack (RequestID, RealIP,
// Logger, Recoverer) plus a bounded request body size.
func NewRouter(s *Server, cfg Config) http.Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(maxBodyBytes(maxBody))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreateTask)
		r.Get("/", s.handleSearchTasks)

		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Get("/logs", s.handleListExecutionLogs)
			r.Post("/cancel", s.handleCancel)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/retry", s.handleRetry)
			r.Post("/retry-now", s.handleRetryNow)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
