package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/domain"
)

func TestWebhookSink_MaxRetriesExceeded_PostsExpectedPayload(t *testing.T) {
	received := make(chan webhookMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg webhookMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received <- msg
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "#alerts", time.Second)
	task := &domain.Task{ID: "t1", Type: domain.TaskTypeOrderCancel, ReferenceID: "order-1", RetryCount: 5}

	sink.MaxRetriesExceeded(context.Background(), task)

	select {
	case msg := <-received:
		assert.Equal(t, "#alerts", msg.Channel)
		assert.Equal(t, "task exceeded max retries", msg.Title)
		assert.Equal(t, "t1", msg.Details["task_id"])
	case <-time.After(time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestWebhookSink_DeliveryFailureDoesNotPanic(t *testing.T) {
	sink := NewWebhookSink("http://127.0.0.1:0", "", 10*time.Millisecond)
	task := &domain.Task{ID: "t1", Type: domain.TaskTypeCustom}

	assert.NotPanics(t, func() {
		sink.TaskFailure(context.Background(), task, "boom")
	})
}

func TestWebhookSink_GenericError(t *testing.T) {
	received := make(chan webhookMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg webhookMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received <- msg
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "", time.Second)
	sink.GenericError(context.Background(), "store outage", "connection refused", map[string]any{"retries": 3})

	select {
	case msg := <-received:
		assert.Equal(t, "store outage", msg.Title)
		assert.Equal(t, "connection refused", msg.Text)
	case <-time.After(time.Second):
		t.Fatal("webhook was never called")
	}
}
