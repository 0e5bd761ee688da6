package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// PaymentRefundPayload is the expected shape of Task.Payload for
// domain.TaskTypePaymentRefund.
type PaymentRefundPayload struct {
	PaymentID string `json:"payment_id"`
	AmountCents int64 `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// PaymentRefund calls an opaque payment-provider service to issue a full
// refund.
type PaymentRefund struct {
	client *Client
}

func NewPaymentRefund(baseURL string, timeout time.Duration) *PaymentRefund {
	return &PaymentRefund{client: NewClient(baseURL, timeout)}
}

func (h *PaymentRefund) TaskType() domain.TaskType { return domain.TaskTypePaymentRefund }

func (h *PaymentRefund) Validate(task *domain.Task) error {
	var p PaymentRefundPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_refund payload: %v", err)}
	}
	if p.PaymentID == "" {
		return &scheduler.ValidationError{Message: "payment_refund payload requires payment_id"}
	}
	return nil
}

func (h *PaymentRefund) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	var p PaymentRefundPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return scheduler.Result{}, &scheduler.ValidationError{Message: fmt.Sprintf("invalid payment_refund payload: %v", err)}
	}

	status, body, err := h.client.postJSON(ctx, fmt.Sprintf("/payments/%s/refund", p.PaymentID), p)
	if err != nil {
		return scheduler.Result{}, classifyTransportError(err)
	}

	return classify(status, body, "PAYMENT_NOT_FOUND", "PAYMENT_STATE_CONFLICT"), nil
}

// NextRetryDelay implements the payment backoff ladder (spec §4.4):
// deliberately slower than order-cancel's to reduce duplicate-refund risk.
func (h *PaymentRefund) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.PaymentNextRetryDelay(task.RetryCount, defaultDelayHours)
}
