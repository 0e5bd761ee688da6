// Package handler implements the reference Handler values dispatched by
// the scheduler's Registry (spec §4.4): order_cancel, payment_refund,
// payment_partial_refund, payment_void, webhook_notification, and custom.
// Each HTTP-backed handler shares one opaque outbound client and one
// error-classification table, grounded in the teacher's
// internal/application/worker/error_handler.go (which classifies failures
// the same way — by inspecting a concrete error/status against a fixed
// table) even though the teacher itself has no outbound-HTTP handler to
// adapt directly.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskscheduler/engine/internal/application/scheduler"
)

// Client wraps an *http.Client instrumented with otelhttp.NewTransport, used
// by every HTTP-backed handler below to call its opaque upstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a Client targeting baseURL with the given per-request
// timeout, wrapping http.DefaultTransport with OTel instrumentation so
// every outbound call produces a client span (spec's AMBIENT STACK:
// "outbound handler HTTP clients wrapped in otelhttp.NewTransport").
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		baseURL: baseURL,
	}
}

// postJSON issues a POST with a JSON body and returns the status code and
// raw response body regardless of status, so the caller can classify it.
func (c *Client) postJSON(ctx context.Context, path string, body any) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection/timeout failures are classified retryable by the
		// caller via classifyTransportError; surfaced as-is here.
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// classify implements the spec §4.4 HTTP error-classification table:
// 404/409/400/422 are permanent (mapped to a specific ErrorType), 408/429/5xx
// are retryable, and any other non-2xx status is treated as retryable
// ("unexpected-but-unsuccessful" defaults to retry rather than silent
// data loss).
func classify(statusCode int, respBody []byte, notFoundType, conflictType string) scheduler.Result {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return scheduler.Result{Success: true, ResponsePayload: respBody}
	case statusCode == http.StatusNotFound:
		return failureResult(statusCode, notFoundType, "upstream reported not found", false)
	case statusCode == http.StatusConflict:
		return failureResult(statusCode, conflictType, "upstream reported a state conflict", false)
	case statusCode == http.StatusBadRequest:
		return failureResult(statusCode, "VALIDATION_ERROR", "upstream rejected the request as invalid", false)
	case statusCode == http.StatusUnprocessableEntity:
		return failureResult(statusCode, "BUSINESS_RULE_VIOLATION", "upstream rejected the request on business rules", false)
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return failureResult(statusCode, fmt.Sprintf("HTTP_%d", statusCode), "upstream returned a transient error", true)
	default:
		return failureResult(statusCode, "UNEXPECTED_STATUS", "upstream returned an unexpected status", true)
	}
}

func failureResult(statusCode int, errorType, message string, retryable bool) scheduler.Result {
	code := statusCode
	return scheduler.Result{
		Success:        false,
		Retryable:      retryable,
		ErrorType:      errorType,
		ErrorMessage:   message,
		HTTPStatusCode: &code,
	}
}

// classifyTransportError maps a connection/timeout failure (err returned by
// postJSON before any status code was observed) to a retryable scheduler
// error, per spec §4.4's "connection refused / timeout" exception class.
func classifyTransportError(err error) error {
	return scheduler.Transient(fmt.Errorf("transport error: %w", err))
}
