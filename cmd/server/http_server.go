package main

import (
	"context"
	"net/http"

	"github.com/taskscheduler/engine/internal/config"
)

// HTTPServer wraps the inbound HTTP surface's *http.Server and its
// configuration, adapted from the teacher's cmd/server/http_server.go.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds an HTTPServer binding host:port from cfg, serving
// handler (the chi router from internal/infrastructure/httpapi, already
// wrapped in otelhttp instrumentation by the caller).
func NewHTTPServer(handler http.Handler, cfg config.HTTPConfig) *HTTPServer {
	addr := cfg.Host + ":" + cfg.Port
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
		},
	}
}

// Addr returns the server's configured bind address.
func (s *HTTPServer) Addr() string { return s.server.Addr }

// Start runs the HTTP server, blocking until it stops or fails.
func (s *HTTPServer) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
