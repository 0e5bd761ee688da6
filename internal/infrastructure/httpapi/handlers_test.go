package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/engine/internal/domain"
)

func newTestRouter() (http.Handler, *fakeWriter) {
	w := newFakeWriter()
	server := NewServer(w)
	return NewRouter(server, Config{}), w
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateTask_Success(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/tasks", map[string]any{
		"type":         "ORDER_CANCEL",
		"reference_id": "order-1",
		"payload":      map[string]string{"order_id": "ord-1"},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.ReferenceID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestHandleCreateTask_MissingReferenceID(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/tasks", map[string]any{
		"type": "ORDER_CANCEL",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCreateTask_DuplicateReturnsExisting(t *testing.T) {
	router, _ := newTestRouter()

	body := map[string]any{
		"type":         "ORDER_CANCEL",
		"reference_id": "order-dup",
		"payload":      map[string]string{"order_id": "ord-1"},
	}
	first := doJSON(t, router, http.MethodPost, "/tasks", body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/tasks", body)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.NotEmpty(t, second.Header().Get("X-Duplicate-Of"))
}

func TestHandleGetTask_NotFound(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/tasks/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancel_RefusesTerminal(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusCompleted}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/cancel", map[string]any{"reason": "test"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleCancel_Success(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPending}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/cancel", map[string]any{"reason": "no longer needed"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Status)
}

func TestHandleResume_RequiresPaused(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPending}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleResume_Success(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPaused}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
}

func TestHandleRetry_RequiresRetryableState(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusProcessing}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleRetryNow_FromFailed(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusFailed}

	rec := doJSON(t, router, http.MethodPost, "/tasks/t1/retry-now", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, []domain.TaskID{"t1"}, w.notified)
}

func TestHandleSearchTasks_FiltersByStatus(t *testing.T) {
	router, w := newTestRouter()
	w.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPending, Type: domain.TaskTypeCustom}
	w.tasks["t2"] = &domain.Task{ID: "t2", Status: domain.StatusCompleted, Type: domain.TaskTypeCustom}

	rec := doJSON(t, router, http.MethodGet, "/tasks?status=PENDING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []taskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "t1", resp[0].ID)
}

func TestHandleHealthz(t *testing.T) {
	router, _ := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
