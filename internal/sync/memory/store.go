// Package memory provides an in-memory sync gateway backend. It implements
// the same contract as the SQLite backend and backs the engine and handler
// tests; workspaces are isolated behind their own locks so pushes to
// different workspaces never contend.
package memory

import (
	"context"
	"sort"
	stdsync "sync"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// Store is an in-memory Backend implementation.
type Store struct {
	mu         stdsync.Mutex
	workspaces map[string]*workspaceState
	now        func() time.Time
}

// workspaceState holds one workspace's log and cursors. The lock serializes
// version assignment for the workspace.
type workspaceState struct {
	mu          stdsync.Mutex
	records     []models.ChangeRecord
	byOpID      map[string]int // opId -> index into records
	lastVersion int64
	cursors     map[string]models.DeviceCursor
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		workspaces: make(map[string]*workspaceState),
		now:        time.Now,
	}
}

// SetClock overrides the store's time source. Tests use it to age records
// past the retention window.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// workspace returns the state for workspaceID, creating it on first use.
func (s *Store) workspace(workspaceID string) *workspaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		ws = &workspaceState{
			byOpID:  make(map[string]int),
			cursors: make(map[string]models.DeviceCursor),
		}
		s.workspaces[workspaceID] = ws
	}
	return ws
}

// Append applies ops in input order, reusing records for previously seen
// opIds and assigning the next version to new ones.
func (s *Store) Append(ctx context.Context, workspaceID string, ops []models.PushOp) ([]models.ChangeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	createdAt := s.now().Unix()
	out := make([]models.ChangeRecord, len(ops))
	for i, op := range ops {
		if idx, ok := ws.byOpID[op.Stamp.OpID]; ok {
			out[i] = ws.records[idx]
			continue
		}
		ws.lastVersion++
		rec := models.ChangeRecord{
			WorkspaceID:   workspaceID,
			ServerVersion: ws.lastVersion,
			TableName:     op.TableName,
			PrimaryKey:    op.PrimaryKey,
			Operation:     op.Operation,
			Payload:       op.Payload,
			Stamp:         op.Stamp,
			CreatedAt:     createdAt,
		}
		ws.records = append(ws.records, rec)
		ws.byOpID[op.Stamp.OpID] = len(ws.records) - 1
		out[i] = rec
	}
	return out, nil
}

// ReadAfter returns up to limit records with serverVersion > cursor in
// ascending order, restricted to tables when non-empty. hasMore is computed
// against the same filter.
func (s *Store) ReadAfter(ctx context.Context, workspaceID string, cursor int64, tables []string, limit int) ([]models.ChangeRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}

	var out []models.ChangeRecord
	hasMore := false
	for _, rec := range ws.records {
		if rec.ServerVersion <= cursor {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.TableName] {
			continue
		}
		if len(out) == limit {
			hasMore = true
			break
		}
		out = append(out, rec)
	}
	return out, hasMore, nil
}

// MaxVersion returns the workspace's highest assigned version, or 0.
func (s *Store) MaxVersion(ctx context.Context, workspaceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.lastVersion, nil
}

// DeleteUpTo removes records that satisfy both the version cutoff and the
// age cutoff. The version counter is untouched so deleted versions are
// never reassigned.
func (s *Store) DeleteUpTo(ctx context.Context, workspaceID string, versionCutoff int64, createdBefore time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	cutoffUnix := createdBefore.Unix()
	kept := ws.records[:0]
	var deleted int64
	for _, rec := range ws.records {
		if rec.ServerVersion <= versionCutoff && rec.CreatedAt < cutoffUnix {
			delete(ws.byOpID, rec.Stamp.OpID)
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	ws.records = kept
	for i, rec := range ws.records {
		ws.byOpID[rec.Stamp.OpID] = i
	}
	return deleted, nil
}

// Workspaces lists workspaces that currently hold at least one record.
func (s *Store) Workspaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id, ws := range s.workspaces {
		ws.mu.Lock()
		n := len(ws.records)
		ws.mu.Unlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// UpdateCursor upserts the device's acknowledged version.
func (s *Store) UpdateCursor(ctx context.Context, workspaceID, deviceID string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.cursors[deviceID] = models.DeviceCursor{
		WorkspaceID:     workspaceID,
		DeviceID:        deviceID,
		LastSeenVersion: version,
		UpdatedAt:       s.now().Unix(),
	}
	return nil
}

// MinCursor returns the minimum acknowledged version across all devices, or
// 0 if no device has reported.
func (s *Store) MinCursor(ctx context.Context, workspaceID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if len(ws.cursors) == 0 {
		return 0, nil
	}
	min := int64(-1)
	for _, c := range ws.cursors {
		if min < 0 || c.LastSeenVersion < min {
			min = c.LastSeenVersion
		}
	}
	return min, nil
}

// Cursors returns all device cursors for the workspace, ordered by device.
func (s *Store) Cursors(ctx context.Context, workspaceID string) ([]models.DeviceCursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws := s.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	out := make([]models.DeviceCursor, 0, len(ws.cursors))
	for _, c := range ws.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

// Close implements sync.Backend. The in-memory store holds no resources.
func (s *Store) Close() error {
	return nil
}
