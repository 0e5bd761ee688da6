package config

import "time"

// HTTPConfig holds the inbound API's HTTP server configuration (spec
// §6.3 `http_host`/`http_port`).
type HTTPConfig struct {
	Host              string        `env:"SCHED_HTTP_HOST"`
	Port              string        `env:"SCHED_HTTP_PORT" default:"8080"`
	ReadTimeout       time.Duration `env:"SCHED_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `env:"SCHED_HTTP_WRITE_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `env:"SCHED_HTTP_IDLE_TIMEOUT" default:"60s"`
	ReadHeaderTimeout time.Duration `env:"SCHED_HTTP_READ_HEADER_TIMEOUT" default:"5s"`
	MaxHeaderBytes    int           `env:"SCHED_HTTP_MAX_HEADER_BYTES" default:"1048576"`
	MaxBodyBytes      int64         `env:"SCHED_HTTP_MAX_BODY_BYTES" default:"1048576"`
}
