package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// WebhookNotificationPayload is the expected shape of Task.Payload for
// domain.TaskTypeWebhookNotification: an arbitrary event body delivered
// verbatim to a caller-supplied URL.
type WebhookNotificationPayload struct {
	URL  string          `json:"url"`
	Body json.RawMessage `json:"body"`
}

// WebhookNotification posts an arbitrary event body to a caller-supplied
// URL. Unlike the other reference handlers it has no fixed baseURL: the
// destination travels with the task payload, so it uses its own *Client
// per call rather than a shared base-URL client.
type WebhookNotification struct {
	timeout time.Duration
}

func NewWebhookNotification(timeout time.Duration) *WebhookNotification {
	return &WebhookNotification{timeout: timeout}
}

func (h *WebhookNotification) TaskType() domain.TaskType { return domain.TaskTypeWebhookNotification }

func (h *WebhookNotification) Validate(task *domain.Task) error {
	var p WebhookNotificationPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return &scheduler.ValidationError{Message: fmt.Sprintf("invalid webhook_notification payload: %v", err)}
	}
	if p.URL == "" {
		return &scheduler.ValidationError{Message: "webhook_notification payload requires url"}
	}
	return nil
}

func (h *WebhookNotification) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	var p WebhookNotificationPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return scheduler.Result{}, &scheduler.ValidationError{Message: fmt.Sprintf("invalid webhook_notification payload: %v", err)}
	}

	client := NewClient(p.URL, h.timeout)
	status, body, err := client.postJSON(ctx, "", p.Body)
	if err != nil {
		return scheduler.Result{}, classifyTransportError(err)
	}

	return classify(status, body, "WEBHOOK_ENDPOINT_NOT_FOUND", "WEBHOOK_STATE_CONFLICT"), nil
}

// NextRetryDelay uses the default flat delay (spec §4.4): webhook
// notifications carry no duplicate-effect risk worth a jittered ladder.
func (h *WebhookNotification) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.DefaultNextRetryDelay(task.EffectiveRetryDelayHours(defaultDelayHours))
}
