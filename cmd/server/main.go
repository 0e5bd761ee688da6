package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/config"
	"github.com/taskscheduler/engine/internal/infrastructure/httpapi"
	"github.com/taskscheduler/engine/internal/infrastructure/observability"
	"github.com/taskscheduler/engine/internal/infrastructure/postgres"
	"github.com/taskscheduler/engine/internal/infrastructure/sqlitestore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	providers, err := observability.Init(ctx, cfg.Observability.ServiceName, cfg.Observability.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "failed to shutdown observability providers", "error", err)
		}
	}()

	slog.InfoContext(ctx, "starting task scheduler API", "env", cfg.Env)

	writer, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	slog.InfoContext(ctx, "storage initialized", "driver", cfg.Database.Driver, "dsn", maskPassword(cfg.Database.DSN))

	server := httpapi.NewServer(writer)
	router := httpapi.NewRouter(server, httpapi.Config{MaxBodyBytes: cfg.HTTP.MaxBodyBytes})
	handler := otelhttp.NewHandler(router, "task-scheduler-api")

	httpServer := NewHTTPServer(handler, cfg.HTTP)

	errResult := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "HTTP server listening", "address", httpServer.Addr())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown timed out", "error", err)
		} else {
			slog.InfoContext(shutdownCtx, "HTTP server shutdown complete")
		}
		return nil
	case err := <-errResult:
		return err
	}
}

// openStore builds the durable store named by cfg.Driver, returning it as
// the scheduler.TaskWriter the HTTP surface needs plus a close func.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (scheduler.TaskWriter, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlitestore.NewStore(ctx, sqlitestore.Config{Path: cfg.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.ErrorContext(ctx, "failed to close sqlite store", "error", err)
			}
		}, nil
	default:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTime) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	}
}

// newShutdownContext creates a fresh context with timeout for graceful
// shutdown operations, since the main context is already cancelled by the
// time shutdown runs.
func newShutdownContext(timeoutSeconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(timeoutSeconds)*time.Second)
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			username := u.User.Username()
			u.User = url.UserPassword(username, "xxxxxx")
		}
	}
	return u.String()
}
