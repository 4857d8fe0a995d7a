// Package sync implements the multi-device change synchronization gateway:
// an append-only, strictly ordered change log per workspace with idempotent
// writes, resumable incremental reads, per-device cursor tracking and
// retention-bounded garbage collection.
package sync

import (
	"context"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// ChangeLogStore is the durable, append-only ledger of change records for a
// workspace. It is the sole version authority: nothing else may assign or
// mutate serverVersion values.
type ChangeLogStore interface {
	// Append applies a batch of ops in one atomic transaction, in input
	// order. An op whose stamp.opId already exists in the workspace reuses
	// the previously assigned record; otherwise the next strictly
	// increasing version is assigned and a new record persisted. Returns
	// one record per input op, positionally. Any storage fault rolls back
	// the whole batch.
	Append(ctx context.Context, workspaceID string, ops []models.PushOp) ([]models.ChangeRecord, error)

	// ReadAfter returns records with serverVersion > cursor, restricted to
	// tables when non-empty, ascending by serverVersion, at most limit
	// entries. hasMore reports whether further matching records exist past
	// the returned page, evaluated under the same table filter.
	ReadAfter(ctx context.Context, workspaceID string, cursor int64, tables []string, limit int) (records []models.ChangeRecord, hasMore bool, err error)

	// MaxVersion returns the highest assigned version for the workspace,
	// or 0 if none.
	MaxVersion(ctx context.Context, workspaceID string) (int64, error)

	// DeleteUpTo deletes records with serverVersion <= versionCutoff AND
	// createdAt before createdBefore. Both conditions are required; a
	// record is never deleted on one of them alone.
	DeleteUpTo(ctx context.Context, workspaceID string, versionCutoff int64, createdBefore time.Time) (int64, error)

	// Workspaces lists all workspace ids with at least one change record.
	// Used by the periodic retention sweep.
	Workspaces(ctx context.Context) ([]string, error)
}

// CursorTracker records per-device read progress. It owns device cursor rows
// exclusively; the push and pull paths never write them.
type CursorTracker interface {
	// UpdateCursor upserts the (workspace, device) cursor to version. The
	// tracker stores whatever the device reports; it does not police
	// monotonicity against the previous value.
	UpdateCursor(ctx context.Context, workspaceID, deviceID string, version int64) error

	// MinCursor returns the minimum lastSeenVersion across all devices in
	// the workspace, or 0 if no device has ever reported.
	MinCursor(ctx context.Context, workspaceID string) (int64, error)

	// Cursors returns all device cursors for a workspace.
	Cursors(ctx context.Context, workspaceID string) ([]models.DeviceCursor, error)
}

// Backend bundles the two storage halves of the gateway. A concrete backend
// implements both over one storage engine and is selected at configuration
// time.
type Backend interface {
	ChangeLogStore
	CursorTracker

	// Close releases the backend's resources.
	Close() error
}
