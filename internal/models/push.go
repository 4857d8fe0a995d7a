package models

import "encoding/json"

// PushOp is one client-submitted mutation. It is transient input: the
// gateway turns it into a ChangeRecord (or matches it to an existing one
// by Stamp.OpID) but never stores it as-is.
type PushOp struct {
	TableName  string          `json:"tableName"`
	PrimaryKey string          `json:"pk"`
	Operation  Operation       `json:"operation"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Stamp      Stamp           `json:"stamp"`
}

// OpResult reports the outcome of one pushed op. Success is true both for
// newly applied ops and for idempotent duplicates; callers cannot and need
// not tell the two apart.
type OpResult struct {
	OpID          string `json:"opId"`
	Success       bool   `json:"success"`
	ServerVersion int64  `json:"serverVersion"`
}

// PushResult is the response for a push batch. Results[i] corresponds
// positionally to the i-th submitted op. ServerVersion is the workspace's
// max version after the batch.
type PushResult struct {
	Results       []OpResult `json:"results"`
	ServerVersion int64      `json:"serverVersion"`
}

// PullResult is the response for an incremental read. NextCursor is the
// serverVersion of the last returned change, or the request cursor when no
// changes were returned. HasMore signals that a further pull with
// NextCursor and the same table filter would return more changes.
type PullResult struct {
	Changes    []ChangeRecord `json:"changes"`
	NextCursor int64          `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}
