package config

import "time"

// HandlerConfig configures the reference outbound handlers of spec §4.4:
// the base URL of each upstream service they call, plus a shared per-call
// timeout. webhook_notification carries no base URL of its own — its
// destination travels with the task payload (internal/handler.WebhookNotification).
type HandlerConfig struct {
	OrderServiceURL   string        `env:"SCHED_ORDER_SERVICE_URL"`
	PaymentServiceURL string        `env:"SCHED_PAYMENT_SERVICE_URL"`
	Timeout           time.Duration `env:"SCHED_HANDLER_TIMEOUT" default:"30s"`
}
