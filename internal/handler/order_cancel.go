package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

// OrderCancelPayload is the expected shape of Task.Payload for
// domain.TaskTypeOrderCancel.
type OrderCancelPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// OrderCancel calls an opaque order-management service to cancel an order.
type OrderCancel struct {
	client *Client
}

// NewOrderCancel builds the handler against baseURL, e.g. the order
// service's internal API.
func NewOrderCancel(baseURL string, timeout time.Duration) *OrderCancel {
	return &OrderCancel{client: NewClient(baseURL, timeout)}
}

func (h *OrderCancel) TaskType() domain.TaskType { return domain.TaskTypeOrderCancel }

func (h *OrderCancel) Validate(task *domain.Task) error {
	var p OrderCancelPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return &scheduler.ValidationError{Message: fmt.Sprintf("invalid order_cancel payload: %v", err)}
	}
	if p.OrderID == "" {
		return &scheduler.ValidationError{Message: "order_cancel payload requires order_id"}
	}
	return nil
}

func (h *OrderCancel) Execute(ctx context.Context, task *domain.Task) (scheduler.Result, error) {
	var p OrderCancelPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return scheduler.Result{}, &scheduler.ValidationError{Message: fmt.Sprintf("invalid order_cancel payload: %v", err)}
	}

	status, body, err := h.client.postJSON(ctx, fmt.Sprintf("/orders/%s/cancel", p.OrderID), p)
	if err != nil {
		return scheduler.Result{}, classifyTransportError(err)
	}

	return classify(status, body, "ORDER_NOT_FOUND", "ORDER_STATE_CONFLICT"), nil
}

// NextRetryDelay implements the order-cancel backoff ladder (spec §4.4):
// shorter and more aggressive than the payment ladder, since re-cancelling
// an order is low-risk to repeat.
func (h *OrderCancel) NextRetryDelay(task *domain.Task, defaultDelayHours float64) time.Duration {
	return scheduler.OrderCancelNextRetryDelay(task.RetryCount, defaultDelayHours)
}
