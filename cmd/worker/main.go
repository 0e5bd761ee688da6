package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/taskscheduler/engine/internal/alert"
	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/config"
	"github.com/taskscheduler/engine/internal/handler"
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
	cfg, err := config.LoadWorkerConfig()
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

	slog.InfoContext(ctx, "starting task scheduler worker", "env", cfg.Env)

	repo, closeStore, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	slog.InfoContext(ctx, "storage initialized", "driver", cfg.Database.Driver)

	registry := scheduler.NewRegistry(
		handler.NewOrderCancel(cfg.Handlers.OrderServiceURL, cfg.Handlers.Timeout),
		handler.NewPaymentRefund(cfg.Handlers.PaymentServiceURL, cfg.Handlers.Timeout),
		handler.NewPaymentPartialRefund(cfg.Handlers.PaymentServiceURL, cfg.Handlers.Timeout),
		handler.NewPaymentVoid(cfg.Handlers.PaymentServiceURL, cfg.Handlers.Timeout),
		handler.NewWebhookNotification(cfg.Handlers.Timeout),
		handler.NewCustom(),
	)

	var alerter scheduler.Alerter = scheduler.NoopAlerter{}
	if cfg.Alert.Enabled {
		alerter = alert.NewWebhookSink(cfg.Alert.WebhookURL, cfg.Alert.Channel, cfg.Alert.Timeout)
		slog.InfoContext(ctx, "alerting enabled", "channel", cfg.Alert.Channel)
	}

	var metrics scheduler.Metrics = scheduler.NoopMetrics{}
	if m, err := observability.NewMetrics(providers.Meter); err != nil {
		slog.WarnContext(ctx, "failed to init scheduler metrics, recording nothing", "error", err)
	} else {
		metrics = m
	}

	instanceID := instanceID()
	engineCfg := cfg.Scheduler.ToEngine()

	executor := scheduler.NewExecutor(repo, registry, alerter, metrics, instanceID, engineCfg)
	poller := scheduler.NewPoller(repo, executor, instanceID, engineCfg)
	reaper := scheduler.NewReaper(repo, instanceID, engineCfg)

	slog.InfoContext(ctx, "worker ready", "instance_id", instanceID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	wg.Wait()
	slog.InfoContext(ctx, "worker shutdown complete")
	return nil
}

// openRepository builds the durable store named by cfg.Driver, returning
// it as the scheduler.Repository the Poller/Executor/Reaper need plus a
// close func.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (scheduler.Repository, func(), error) {
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

// instanceID identifies this worker process for lock-ownership columns
// (spec §4.3): hostname plus pid, unique enough to tell replicas apart in
// logs and in locked_by/holder columns.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
