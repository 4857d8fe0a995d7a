package sqlite

import (
	"context"
	"fmt"

	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// UpdateCursor upserts the (workspace, device) acknowledged version. The
// tracker stores whatever the device reports; callers are expected to
// report only versions they have durably consumed.
func (s *Store) UpdateCursor(ctx context.Context, workspaceID, deviceID string, version int64) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO device_cursors (workspace_id, device_id, last_seen_version, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(workspace_id, device_id) DO UPDATE SET
		last_seen_version = excluded.last_seen_version,
		updated_at = excluded.updated_at
	`, workspaceID, deviceID, version, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert cursor: %w", err)
	}
	return nil
}

// MinCursor returns the minimum acknowledged version across all devices in
// the workspace, or 0 if no device has ever reported. The zero return makes
// the retention collector delete nothing.
func (s *Store) MinCursor(ctx context.Context, workspaceID string) (int64, error) {
	var min int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MIN(last_seen_version), 0) FROM device_cursors WHERE workspace_id = ?`,
		workspaceID,
	).Scan(&min)
	if err != nil {
		return 0, fmt.Errorf("failed to read min cursor: %w", err)
	}
	return min, nil
}

// Cursors returns all device cursors for a workspace ordered by device id.
func (s *Store) Cursors(ctx context.Context, workspaceID string) ([]models.DeviceCursor, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT workspace_id, device_id, last_seen_version, updated_at
	FROM device_cursors WHERE workspace_id = ? ORDER BY device_id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cursors: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceCursor
	for rows.Next() {
		var c models.DeviceCursor
		if err := rows.Scan(&c.WorkspaceID, &c.DeviceID, &c.LastSeenVersion, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
