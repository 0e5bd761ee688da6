package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/application/scheduler"
	"github.com/taskscheduler/engine/internal/domain"
)

func newOrderCancelTask(payload string) *domain.Task {
	return &domain.Task{
		ID:      "task-1",
		Type:    domain.TaskTypeOrderCancel,
		Payload: json.RawMessage(payload),
	}
}

func TestOrderCancel_Validate(t *testing.T) {
	h := NewOrderCancel("http://unused", time.Second)

	assert.NoError(t, h.Validate(newOrderCancelTask(`{"order_id":"ord-1"}`)))

	err := h.Validate(newOrderCancelTask(`{"order_id":""}`))
	assert.True(t, scheduler.IsValidation(err))

	err = h.Validate(newOrderCancelTask(`not json`))
	assert.True(t, scheduler.IsValidation(err))
}

func TestOrderCancel_Execute_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/ord-1/cancel", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"cancelled"}`))
	}))
	defer srv.Close()

	h := NewOrderCancel(srv.URL, time.Second)
	result, err := h.Execute(context.Background(), newOrderCancelTask(`{"order_id":"ord-1"}`))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, string(result.ResponsePayload), "cancelled")
}

func TestOrderCancel_Execute_NotFoundIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := NewOrderCancel(srv.URL, time.Second)
	result, err := h.Execute(context.Background(), newOrderCancelTask(`{"order_id":"ord-1"}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Retryable)
	assert.Equal(t, "ORDER_NOT_FOUND", result.ErrorType)
}

func TestOrderCancel_Execute_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewOrderCancel(srv.URL, time.Second)
	result, err := h.Execute(context.Background(), newOrderCancelTask(`{"order_id":"ord-1"}`))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.Retryable)
}

func TestOrderCancel_Execute_TransportErrorIsRetryable(t *testing.T) {
	h := NewOrderCancel("http://127.0.0.1:0", time.Millisecond)
	_, err := h.Execute(context.Background(), newOrderCancelTask(`{"order_id":"ord-1"}`))
	require.Error(t, err)
	assert.True(t, scheduler.IsRetryable(err))
}

func TestOrderCancel_NextRetryDelay_UsesOrderCancelLadder(t *testing.T) {
	h := NewOrderCancel("http://unused", time.Second)
	task := newOrderCancelTask(`{"order_id":"ord-1"}`)
	task.RetryCount = 0

	delay := h.NextRetryDelay(task, 24)
	assert.GreaterOrEqual(t, delay, time.Hour)
	assert.Less(t, delay, 2*time.Hour)
}
