// Package config loads the engine's environment-driven configuration
// surface (spec §6.3), in the teacher's own style: a small reflection-based
// loader (internal/env) over struct-tagged fields, with a Validator hook
// for nested structs.
package config

import "fmt"

// Env names the deployment environment.
type Env = string

const (
	EnvDev  Env = "dev"
	EnvProd Env = "prod"
)

// WorkerConfig holds all configuration for the cmd/worker binary: the
// engine's Poller/Executor/Reaper plus the ambient infrastructure they
// depend on.
type WorkerConfig struct {
	Database      DatabaseConfig
	Scheduler     SchedulerConfig
	Alert         AlertConfig
	Handlers      HandlerConfig
	Observability ObservabilityConfig
	Env           string `env:"SCHED_ENV" default:"dev"`
}

// LoadWorkerConfig loads and validates cmd/worker's configuration from
// environment variables.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := loadInto(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}
	return cfg, nil
}

// ServerConfig holds all configuration for the cmd/server binary: the §6.1
// inbound HTTP surface plus the ambient infrastructure it depends on.
type ServerConfig struct {
	Database        DatabaseConfig
	HTTP            HTTPConfig
	Scheduler       SchedulerConfig
	Observability   ObservabilityConfig
	ShutdownTimeout int    `env:"SCHED_SHUTDOWN_TIMEOUT_SEC" default:"30"`
	Env             string `env:"SCHED_ENV" default:"dev"`
}

// LoadServerConfig loads and validates cmd/server's configuration from
// environment variables.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := loadInto(cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	return cfg, nil
}
