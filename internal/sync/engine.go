package sync

import (
	"context"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// Engine composes the gateway components over one backend and exposes the
// four-operation contract every storage backend must satisfy: push, pull,
// cursor update and retention collection. Authentication and workspace
// authorization happen in the session layer before any call reaches the
// engine.
type Engine struct {
	log       ChangeLogStore
	cursors   CursorTracker
	push      *PushCoordinator
	pull      *PullReader
	collector *RetentionCollector
}

// NewEngine creates an Engine over a change log store and a cursor tracker.
func NewEngine(log ChangeLogStore, cursors CursorTracker) *Engine {
	return &Engine{
		log:       log,
		cursors:   cursors,
		push:      NewPushCoordinator(log),
		pull:      NewPullReader(log),
		collector: NewRetentionCollector(log, cursors),
	}
}

// Push applies a batch of client-submitted ops. See PushCoordinator.Push.
func (e *Engine) Push(ctx context.Context, workspaceID string, ops []models.PushOp) (*models.PushResult, error) {
	return e.push.Push(ctx, workspaceID, ops)
}

// Pull reads changes newer than cursor. See PullReader.Pull.
func (e *Engine) Pull(ctx context.Context, workspaceID string, cursor int64, tables []string, limit int) (*models.PullResult, error) {
	return e.pull.Pull(ctx, workspaceID, cursor, tables, limit)
}

// UpdateCursor records a device's acknowledged high-water mark.
func (e *Engine) UpdateCursor(ctx context.Context, workspaceID, deviceID string, version int64) error {
	if err := validateCursorUpdate(workspaceID, deviceID, version); err != nil {
		return err
	}
	if err := e.cursors.UpdateCursor(ctx, workspaceID, deviceID, version); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update cursor", err)
	}
	return nil
}

// Collect prunes acknowledged history older than the retention window.
// Returns the number of records deleted.
func (e *Engine) Collect(ctx context.Context, workspaceID string, retention time.Duration) (int64, error) {
	return e.collector.Collect(ctx, workspaceID, retention)
}

// Collector returns the engine's retention collector, for running the
// periodic sweep.
func (e *Engine) Collector() *RetentionCollector {
	return e.collector
}

// MaxVersion returns the workspace's highest assigned version.
func (e *Engine) MaxVersion(ctx context.Context, workspaceID string) (int64, error) {
	if err := validateWorkspace(workspaceID); err != nil {
		return 0, err
	}
	return e.log.MaxVersion(ctx, workspaceID)
}
