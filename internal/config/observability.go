package config

// ObservabilityConfig holds OpenTelemetry wiring configuration (spec §6.3
// `otel_enabled`/`otel_service_name`); the OTLP endpoint/headers are read
// from the standard OTEL_EXPORTER_OTLP_* environment variables directly by
// internal/infrastructure/observability, matching the teacher's
// pkg/observability/otel.go.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"SCHED_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" default:"task-scheduler"`
	LogLevel    string `env:"SCHED_LOG_LEVEL" default:"info"`
}
