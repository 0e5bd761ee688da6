// Package alert implements the scheduler's outbound alert contract
// (spec §4.6) as a fire-and-forget chat-webhook sink, grounded in the
// teacher's slog-everywhere error-reporting convention from
// internal/application/worker/error_handler.go: failures never propagate
// back to the caller, they are only logged.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskscheduler/engine/internal/domain"
)

// WebhookSink posts a JSON payload to a chat-webhook URL (e.g. Slack's
// incoming-webhook format) for each alert kind in spec §4.6.
type WebhookSink struct {
	client     *http.Client
	webhookURL string
	channel    string
}

// NewWebhookSink builds a sink posting to webhookURL with a bounded
// per-call timeout, optionally tagging the payload with channel.
func NewWebhookSink(webhookURL, channel string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		webhookURL: webhookURL,
		channel:    channel,
	}
}

type webhookMessage struct {
	Channel string         `json:"channel,omitempty"`
	Title   string         `json:"title"`
	Text    string         `json:"text"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *WebhookSink) send(ctx context.Context, msg webhookMessage) {
	msg.Channel = s.channel

	body, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal alert payload", "error", err, "title", msg.Title)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build alert request", "error", err, "title", msg.Title)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "failed to deliver alert", "error", err, "title", msg.Title)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		slog.ErrorContext(ctx, "alert webhook rejected delivery", "status_code", resp.StatusCode, "title", msg.Title)
	}
}

// MaxRetriesExceeded alerts that a task has permanently exhausted its
// retry budget (spec §4.6).
func (s *WebhookSink) MaxRetriesExceeded(ctx context.Context, task *domain.Task) {
	s.send(ctx, webhookMessage{
		Title: "task exceeded max retries",
		Text:  "task " + task.ID.String() + " (" + string(task.Type) + ") exhausted its retry budget",
		Details: map[string]any{
			"task_id":      task.ID.String(),
			"type":         task.Type,
			"reference_id": task.ReferenceID,
			"retry_count":  task.RetryCount,
		},
	})
}

// TaskFailure alerts on a single permanent (non-retryable) failure.
func (s *WebhookSink) TaskFailure(ctx context.Context, task *domain.Task, errMessage string) {
	s.send(ctx, webhookMessage{
		Title: "task failed permanently",
		Text:  errMessage,
		Details: map[string]any{
			"task_id":      task.ID.String(),
			"type":         task.Type,
			"reference_id": task.ReferenceID,
		},
	})
}

// GenericError alerts on an engine-internal error not tied to a specific
// task (e.g. a store outage observed by the Poller/Reaper).
func (s *WebhookSink) GenericError(ctx context.Context, title, body string, details map[string]any) {
	s.send(ctx, webhookMessage{Title: title, Text: body, Details: details})
}
