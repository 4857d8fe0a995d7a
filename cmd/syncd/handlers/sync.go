// Package handlers provides the REST API handlers for the sync gateway.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/models"
	"github.com/Saluana/or3-chat-sub017/internal/sync"
	"github.com/Saluana/or3-chat-sub017/internal/telemetry"
)

// defaultPullLimit caps pulls that do not name their own page size.
const defaultPullLimit = 500

// WSNotifier receives change notifications for fan-out to connected
// clients. Wired by main; nil disables notifications.
type WSNotifier interface {
	BroadcastChanges(workspaceID string, serverVersion int64)
	BroadcastPruned(workspaceID string, deleted int64)
}

// SyncHandler handles push, pull, cursor and retention requests.
type SyncHandler struct {
	engine    *sync.Engine
	retention time.Duration
	wsHub     WSNotifier
}

// NewSyncHandler creates a new SyncHandler. retention is the configured
// retention window applied by the collection endpoint.
func NewSyncHandler(engine *sync.Engine, retention time.Duration) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		retention: retention,
	}
}

// SetWebSocketHub sets the hub notified after successful pushes.
func (h *SyncHandler) SetWebSocketHub(wsHub WSNotifier) {
	h.wsHub = wsHub
}

// Push handles POST /api/sync/push.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	var request struct {
		WorkspaceID string          `json:"workspaceId"`
		Ops         []models.PushOp `json:"ops"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.New(errors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.engine.Push(r.Context(), request.WorkspaceID, request.Ops)
	if err != nil {
		telemetry.PushFailures.Inc()
		writeError(w, err)
		return
	}

	telemetry.PushBatches.Inc()
	telemetry.PushOps.Add(float64(len(request.Ops)))

	if h.wsHub != nil {
		h.wsHub.BroadcastChanges(request.WorkspaceID, result.ServerVersion)
	}

	writeJSON(w, http.StatusOK, result)
}

// Pull handles POST /api/sync/pull.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	var request struct {
		WorkspaceID string   `json:"workspaceId"`
		Cursor      int64    `json:"cursor"`
		Tables      []string `json:"tables"`
		Limit       int      `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.New(errors.ErrValidation, "invalid request body"))
		return
	}
	if request.Limit == 0 {
		request.Limit = defaultPullLimit
	}

	result, err := h.engine.Pull(r.Context(), request.WorkspaceID, request.Cursor, request.Tables, request.Limit)
	if err != nil {
		writeError(w, err)
		return
	}

	telemetry.Pulls.Inc()
	telemetry.PullRecords.Add(float64(len(result.Changes)))

	writeJSON(w, http.StatusOK, result)
}

// UpdateCursor handles POST /api/sync/cursor.
func (h *SyncHandler) UpdateCursor(w http.ResponseWriter, r *http.Request) {
	var request struct {
		WorkspaceID     string `json:"workspaceId"`
		DeviceID        string `json:"deviceId"`
		LastSeenVersion int64  `json:"lastSeenVersion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.New(errors.ErrValidation, "invalid request body"))
		return
	}

	if err := h.engine.UpdateCursor(r.Context(), request.WorkspaceID, request.DeviceID, request.LastSeenVersion); err != nil {
		writeError(w, err)
		return
	}

	telemetry.CursorUpdates.Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
	})
}

// Collect handles POST /api/sync/gc. The configured retention window
// applies; a request may only lengthen it, never shorten it.
func (h *SyncHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var request struct {
		WorkspaceID      string `json:"workspaceId"`
		RetentionSeconds int64  `json:"retentionSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, errors.New(errors.ErrValidation, "invalid request body"))
		return
	}

	retention := h.retention
	if requested := time.Duration(request.RetentionSeconds) * time.Second; requested > retention {
		retention = requested
	}

	deleted, err := h.engine.Collect(r.Context(), request.WorkspaceID, retention)
	if err != nil {
		writeError(w, err)
		return
	}

	telemetry.RecordsDeleted.Add(float64(deleted))

	if h.wsHub != nil && deleted > 0 {
		h.wsHub.BroadcastPruned(request.WorkspaceID, deleted)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workspaceId": request.WorkspaceID,
		"deleted":     deleted,
	})
}
