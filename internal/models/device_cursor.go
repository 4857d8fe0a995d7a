package models

import "time"

// DeviceCursor tracks a device's acknowledged read progress in a workspace.
// LastSeenVersion is the high-water mark the device has durably consumed.
// Rows are created on first report and upserted afterwards; they are never
// implicitly deleted.
type DeviceCursor struct {
	WorkspaceID     string `db:"workspace_id" json:"workspaceId"`
	DeviceID        string `db:"device_id" json:"deviceId"`
	LastSeenVersion int64  `db:"last_seen_version" json:"lastSeenVersion"`
	UpdatedAt       int64  `db:"updated_at" json:"updatedAt"`
}

// TableName returns the table name for DeviceCursor.
func (DeviceCursor) TableName() string {
	return "device_cursors"
}

// Time returns the UpdatedAt as time.Time.
func (d *DeviceCursor) Time() time.Time {
	return time.Unix(d.UpdatedAt, 0)
}
