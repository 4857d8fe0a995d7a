// Package handlers tests for the sync REST API endpoints.
// These tests verify HTTP request handling, status codes, and responses.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/models"
	"github.com/Saluana/or3-chat-sub017/internal/sync"
	"github.com/Saluana/or3-chat-sub017/internal/sync/memory"
)

func newTestHandler(t *testing.T) (*SyncHandler, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(func() { store.Close() })
	engine := sync.NewEngine(store, store)
	return NewSyncHandler(engine, time.Hour), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func pushBody(workspaceID string, ops ...models.PushOp) map[string]interface{} {
	return map[string]interface{}{
		"workspaceId": workspaceID,
		"ops":         ops,
	}
}

func testOp(opID, pk string) models.PushOp {
	return models.PushOp{
		TableName:  "threads",
		PrimaryKey: pk,
		Operation:  models.OperationPut,
		Payload:    json.RawMessage(`{"title":"hello"}`),
		Stamp:      models.Stamp{OpID: opID},
	}
}

func TestPushEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Push, pushBody("W1", testOp("op1", "A"), testOp("op2", "B")))
	if w.Code != http.StatusOK {
		t.Fatalf("Push status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var result models.PushResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(result.Results))
	}
	if result.Results[0].ServerVersion != 1 || result.Results[1].ServerVersion != 2 {
		t.Errorf("versions = %d, %d, want 1, 2",
			result.Results[0].ServerVersion, result.Results[1].ServerVersion)
	}
	if result.ServerVersion != 2 {
		t.Errorf("batch serverVersion = %d, want 2", result.ServerVersion)
	}
	for _, r := range result.Results {
		if !r.Success {
			t.Errorf("result %s success = false, want true", r.OpID)
		}
	}
}

func TestPushEndpointIdempotentReplay(t *testing.T) {
	handler, _ := newTestHandler(t)

	body := pushBody("W1", testOp("op1", "A"))
	first := postJSON(t, handler.Push, body)
	second := postJSON(t, handler.Push, body)

	if second.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replay response differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
}

func TestPushEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing workspace", pushBody("", testOp("op1", "A"))},
		{"empty batch", pushBody("W1")},
		{"missing opId", pushBody("W1", models.PushOp{
			TableName:  "threads",
			PrimaryKey: "A",
			Operation:  models.OperationPut,
			Payload:    json.RawMessage(`{}`),
		})},
		{"put without payload", pushBody("W1", models.PushOp{
			TableName:  "threads",
			PrimaryKey: "A",
			Operation:  models.OperationPut,
			Stamp:      models.Stamp{OpID: "op1"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, handler.Push, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error body: %v", err)
			}
			if resp.Error.Code != "VALIDATION_ERROR" {
				t.Errorf("error code = %q, want VALIDATION_ERROR", resp.Error.Code)
			}
		})
	}
}

func TestPushEndpointMalformedBody(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	handler.Push(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPullEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	postJSON(t, handler.Push, pushBody("W1",
		testOp("op1", "A"), testOp("op2", "B"), testOp("op3", "C")))

	w := postJSON(t, handler.Pull, map[string]interface{}{
		"workspaceId": "W1",
		"cursor":      1,
		"limit":       10,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Pull status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var result models.PullResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Changes) != 2 {
		t.Fatalf("len(changes) = %d, want 2", len(result.Changes))
	}
	if result.NextCursor != 3 {
		t.Errorf("nextCursor = %d, want 3", result.NextCursor)
	}
	if result.HasMore {
		t.Error("hasMore = true, want false")
	}
}

func TestPullEndpointPagination(t *testing.T) {
	handler, _ := newTestHandler(t)

	postJSON(t, handler.Push, pushBody("W1",
		testOp("op1", "A"), testOp("op2", "B"), testOp("op3", "C")))

	w := postJSON(t, handler.Pull, map[string]interface{}{
		"workspaceId": "W1",
		"cursor":      0,
		"limit":       2,
	})

	var result models.PullResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(result.Changes) != 2 || !result.HasMore {
		t.Errorf("got %d changes hasMore=%v, want 2 with hasMore=true",
			len(result.Changes), result.HasMore)
	}
}

func TestPullEndpointEmptyEchoesCursor(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Pull, map[string]interface{}{
		"workspaceId": "W1",
		"cursor":      7,
		"limit":       10,
	})

	var result models.PullResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.NextCursor != 7 {
		t.Errorf("nextCursor = %d, want 7 (echoed)", result.NextCursor)
	}
	if len(result.Changes) != 0 {
		t.Errorf("len(changes) = %d, want 0", len(result.Changes))
	}
}

func TestPullEndpointDefaultLimit(t *testing.T) {
	handler, _ := newTestHandler(t)

	// Limit omitted: the handler substitutes its default instead of
	// failing validation.
	w := postJSON(t, handler.Pull, map[string]interface{}{
		"workspaceId": "W1",
	})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestPullEndpointNegativeCursor(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.Pull, map[string]interface{}{
		"workspaceId": "W1",
		"cursor":      -1,
		"limit":       10,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCursorEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)

	w := postJSON(t, handler.UpdateCursor, map[string]interface{}{
		"workspaceId":     "W1",
		"deviceId":        "laptop",
		"lastSeenVersion": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateCursor status = %d, want 200: %s", w.Code, w.Body.String())
	}

	min, err := store.MinCursor(context.Background(), "W1")
	if err != nil {
		t.Fatalf("MinCursor failed: %v", err)
	}
	if min != 5 {
		t.Errorf("MinCursor = %d, want 5", min)
	}
}

func TestCursorEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t)

	w := postJSON(t, handler.UpdateCursor, map[string]interface{}{
		"workspaceId":     "W1",
		"lastSeenVersion": 5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing deviceId", w.Code)
	}
}

func TestCollectEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)

	// Backdate records so they fall outside even a tiny retention window.
	past := time.Now().Add(-2 * time.Hour)
	store.SetClock(func() time.Time { return past })
	postJSON(t, handler.Push, pushBody("W1", testOp("op1", "A"), testOp("op2", "B")))
	store.SetClock(time.Now)

	postJSON(t, handler.UpdateCursor, map[string]interface{}{
		"workspaceId":     "W1",
		"deviceId":        "laptop",
		"lastSeenVersion": 2,
	})

	w := postJSON(t, handler.Collect, map[string]interface{}{
		"workspaceId": "W1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Collect status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}
}

func TestCollectEndpointNoCursors(t *testing.T) {
	handler, _ := newTestHandler(t)

	postJSON(t, handler.Push, pushBody("W1", testOp("op1", "A")))

	w := postJSON(t, handler.Collect, map[string]interface{}{
		"workspaceId": "W1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Collect status = %d, want 200", w.Code)
	}

	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Deleted != 0 {
		t.Errorf("deleted = %d, want 0 when no device has reported", resp.Deleted)
	}
}

type recordingNotifier struct {
	changes []int64
	pruned  []int64
}

func (n *recordingNotifier) BroadcastChanges(workspaceID string, serverVersion int64) {
	n.changes = append(n.changes, serverVersion)
}

func (n *recordingNotifier) BroadcastPruned(workspaceID string, deleted int64) {
	n.pruned = append(n.pruned, deleted)
}

func TestPushNotifiesHub(t *testing.T) {
	handler, _ := newTestHandler(t)
	notifier := &recordingNotifier{}
	handler.SetWebSocketHub(notifier)

	postJSON(t, handler.Push, pushBody("W1", testOp("op1", "A")))

	if len(notifier.changes) != 1 || notifier.changes[0] != 1 {
		t.Errorf("notifications = %v, want one at version 1", notifier.changes)
	}

	// Rejected pushes must not notify.
	postJSON(t, handler.Push, pushBody("", testOp("op2", "B")))
	if len(notifier.changes) != 1 {
		t.Errorf("notifications = %v, rejected push should not notify", notifier.changes)
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}

	post := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w = httptest.NewRecorder()
	Health(w, post)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", w.Code)
	}
}
