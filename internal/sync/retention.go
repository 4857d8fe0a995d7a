package sync

import (
	"context"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/logging"
)

// RetentionCollector bounds change-log growth while protecting
// unacknowledged history. A record is eligible for deletion only when every
// device's cursor is at or beyond its version AND it is older than the
// retention window; never on age alone, never on acknowledgment alone.
type RetentionCollector struct {
	log     ChangeLogStore
	cursors CursorTracker
	now     func() time.Time
}

// NewRetentionCollector creates a new RetentionCollector.
func NewRetentionCollector(log ChangeLogStore, cursors CursorTracker) *RetentionCollector {
	return &RetentionCollector{
		log:     log,
		cursors: cursors,
		now:     time.Now,
	}
}

// Collect prunes a workspace's change log and returns the number of records
// deleted. It is idempotent: re-running when nothing new is eligible deletes
// nothing.
func (c *RetentionCollector) Collect(ctx context.Context, workspaceID string, retention time.Duration) (int64, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return 0, err
	}
	if retention < 0 {
		return 0, errors.New(errors.ErrValidation, "retention must not be negative")
	}

	cutoffVersion, err := c.cursors.MinCursor(ctx, workspaceID)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to read min cursor", err)
	}
	if cutoffVersion == 0 {
		// No device has acknowledged anything yet; nothing may be deleted.
		return 0, nil
	}

	cutoffTime := c.now().Add(-retention)
	deleted, err := c.log.DeleteUpTo(ctx, workspaceID, cutoffVersion, cutoffTime)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to delete change records", err)
	}
	return deleted, nil
}

// Run sweeps every known workspace on a fixed interval until ctx is
// cancelled. Sweep failures are logged and do not stop the loop.
func (c *RetentionCollector) Run(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx, retention)
		}
	}
}

// sweep runs one retention pass over all workspaces.
func (c *RetentionCollector) sweep(ctx context.Context, retention time.Duration) {
	workspaces, err := c.log.Workspaces(ctx)
	if err != nil {
		logging.Error("retention sweep: failed to list workspaces", err)
		return
	}

	for _, ws := range workspaces {
		deleted, err := c.Collect(ctx, ws, retention)
		if err != nil {
			logging.Error("retention sweep failed", err, map[string]interface{}{"workspace": ws})
			continue
		}
		if deleted > 0 {
			logging.Info("retention sweep pruned records", map[string]interface{}{
				"workspace": ws,
				"deleted":   deleted,
			})
		}
	}
}
