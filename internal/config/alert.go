package config

import "time"

// AlertConfig holds the outbound alert sink's configuration (spec §6.3
// `alert_webhook_url`/`alert_channel`/`alert_enabled`).
type AlertConfig struct {
	Enabled    bool          `env:"SCHED_ALERT_ENABLED" default:"false"`
	WebhookURL string        `env:"SCHED_ALERT_WEBHOOK_URL"`
	Channel    string        `env:"SCHED_ALERT_CHANNEL"`
	Timeout    time.Duration `env:"SCHED_ALERT_TIMEOUT" default:"5s"`
}
