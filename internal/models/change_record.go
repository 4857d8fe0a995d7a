// Package models provides data model definitions for the sync gateway.
package models

import (
	"encoding/json"
	"time"
)

// Operation identifies the kind of mutation a change record carries.
type Operation string

const (
	OperationPut    Operation = "put"
	OperationDelete Operation = "delete"
)

// IsValid reports whether op is a known operation.
func (op Operation) IsValid() bool {
	return op == OperationPut || op == OperationDelete
}

// Stamp is causal metadata supplied by the origin device. OpID is the
// idempotency key, unique per workspace. Clock carries whatever ordering
// information the client attached; the server preserves it verbatim and
// never interprets it.
type Stamp struct {
	OpID  string          `db:"op_id" json:"opId"`
	Clock json.RawMessage `db:"clock" json:"clock,omitempty"`
}

// ChangeRecord is one durable entry in a workspace's change log.
// ServerVersion is assigned at commit time and is strictly increasing
// within a workspace. CreatedAt is used only for retention accounting,
// never for ordering.
type ChangeRecord struct {
	WorkspaceID   string          `db:"workspace_id" json:"-"`
	ServerVersion int64           `db:"server_version" json:"serverVersion"`
	TableName     string          `db:"table_name" json:"tableName"`
	PrimaryKey    string          `db:"pk" json:"pk"`
	Operation     Operation       `db:"op" json:"op"`
	Payload       json.RawMessage `db:"payload" json:"payload,omitempty"`
	Stamp         Stamp           `db:"stamp" json:"stamp"`
	CreatedAt     int64           `db:"created_at" json:"-"`
}

// Time returns the CreatedAt as time.Time.
func (c *ChangeRecord) Time() time.Time {
	return time.Unix(c.CreatedAt, 0)
}
