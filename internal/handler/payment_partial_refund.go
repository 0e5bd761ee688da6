package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// PaymentPartialRefundPayload is the expected shape of Task.Payload for
// domain.TaskTypePaymentPartialRefund; unlike PaymentRefundPayload,
// AmountCents is mandatory since a partial refund with no amount is
// meaningless.
type PaymentPartialRefundPayload struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentPartialRefund calls an opaque payment-provider service to issue a
// partial refund for a specific amount.
type PaymentPartialRefund struct {
	client *Client
}

func NewPaymentPartialRefund(baseURL string, timeout time.Duration) *PaymentPartialRefund {
	return &PaymentPartialRefund{client: NewClient(baseURL, timeout)}
}

func (h *PaymentPartialRefund) TaskType() domain.TaskType { return domain.TaskTypePaymentPartialRefund }

func (h *PaymentPartialRefund) Validate(task *domain.Task) error {
	var p PaymentPartialRefundPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_partial_refund payload: %v", err)}
	}
	if p.PaymentID == "" {
		return &scheduler.ValidationError{Message: "payment_partial_refund payload requires payment_id"}
	}
	if p.AmountCents <= 0 {
		return &scheduler.ValidationError{Message: "payment_partial_refund payload requires a positive amount_cents"}
	}
	return nil
}

func (h *PaymentPartialRefund) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	var p PaymentPartialRefundPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return scheduler.Result{}, &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_partial_refund payload: %v", err)}
	}

	status, body, err := h.client.postJSON(ctx, fmt.Sprintf("/payments/%s/partial-refund", p.PaymentID), p)
	if err != nil {
		return scheduler.Result{}, classifyTransportError(err)
	}

	return classify(status, body, "PAYMENT_NOT_FOUND", "PAYMENT_STATE_CONFLICT"), nil
}

func (h *PaymentPartialRefund) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.PaymentNextRetryDelay(task.RetryCount, defaultDelayHours)
}
