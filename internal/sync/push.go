package sync

import (
	"context"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// PushCoordinator is the public write path. It wraps ChangeLogStore.Append
// with validation and per-op result shaping. Pushing an identical batch
// twice yields identical results and creates no additional records.
type PushCoordinator struct {
	log ChangeLogStore
}

// NewPushCoordinator creates a new PushCoordinator.
func NewPushCoordinator(log ChangeLogStore) *PushCoordinator {
	return &PushCoordinator{log: log}
}

// Push applies a batch of ops for a workspace. Results[i] corresponds
// positionally to ops[i]; success is true for newly applied ops and for
// idempotent duplicates alike. The batch-level ServerVersion is the
// workspace's max version after the batch.
//
// On a storage fault the whole batch rolls back and no partial results are
// returned; retrying the identical batch is safe because duplicate opIds
// resolve to their previously assigned versions.
func (p *PushCoordinator) Push(ctx context.Context, workspaceID string, ops []models.PushOp) (*models.PushResult, error) {
	if err := validatePush(workspaceID, ops); err != nil {
		return nil, err
	}

	records, err := p.log.Append(ctx, workspaceID, ops)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorageTx, "push batch aborted", err)
	}

	results := make([]models.OpResult, len(records))
	for i, rec := range records {
		results[i] = models.OpResult{
			OpID:          rec.Stamp.OpID,
			Success:       true,
			ServerVersion: rec.ServerVersion,
		}
	}

	maxVersion, err := p.log.MaxVersion(ctx, workspaceID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read max version", err)
	}

	return &models.PushResult{
		Results:       results,
		ServerVersion: maxVersion,
	}, nil
}
