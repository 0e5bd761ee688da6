package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// PaymentVoidPayload is the expected shape of Task.Payload for
// domain.TaskTypePaymentVoid.
type PaymentVoidPayload struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentVoid calls an opaque payment-provider service to void an
// authorization before it settles.
type PaymentVoid struct {
	client *Client
}

func NewPaymentVoid(baseURL string, timeout time.Duration) *PaymentVoid {
	return &PaymentVoid{client: NewClient(baseURL, timeout)}
}

func (h *PaymentVoid) TaskType() domain.TaskType { return domain.TaskTypePaymentVoid }

func (h *PaymentVoid) Validate(task *domain.Task) error {
	var p PaymentVoidPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_void payload: %v", err)}
	}
	if p.PaymentID == "" {
		return &scheduler.ValidationError{Message: "payment_void payload requires payment_id"}
	}
	return nil
}

func (h *PaymentVoid) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	var p PaymentVoidPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return scheduler.Result{}, &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_void payload: %v", err)}
	}

	status, body, err := h.client.postJSON(ctx, fmt.Sprintf("/payments/%s/void", p.PaymentID), p)
	if err != nil {
		return scheduler.Result{}, classifyTransportError(err)
	}

	return classify(status, body, "PAYMENT_NOT_FOUND", "PAYMENT_STATE_CONFLICT"), nil
}

func (h *PaymentVoid) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.PaymentNextRetryDelay(task.RetryCount, defaultDelayHours)
}
