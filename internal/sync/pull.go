package sync

import (
	"context"

	"github.com/Saluana/or3-chat-sub017/internal/errors"
	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// PullReader is the public incremental-read path. Repeatedly pulling with
// each response's NextCursor, filter held constant, yields every matching
// change exactly once in serverVersion order, even while new changes are
// being written concurrently.
type PullReader struct {
	log ChangeLogStore
}

// NewPullReader creates a new PullReader.
func NewPullReader(log ChangeLogStore) *PullReader {
	return &PullReader{log: log}
}

// Pull returns the ordered slice of changes with serverVersion > cursor,
// restricted to tables when non-empty, at most limit entries. NextCursor is
// the serverVersion of the last returned change; when the result is empty
// the input cursor is echoed back so the caller keeps its position.
func (p *PullReader) Pull(ctx context.Context, workspaceID string, cursor int64, tables []string, limit int) (*models.PullResult, error) {
	if err := validatePull(workspaceID, cursor, limit); err != nil {
		return nil, err
	}

	records, hasMore, err := p.log.ReadAfter(ctx, workspaceID, cursor, tables, limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to read changes", err)
	}

	nextCursor := cursor
	if len(records) > 0 {
		nextCursor = records[len(records)-1].ServerVersion
	}

	return &models.PullResult{
		Changes:    records,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
