// Package sqlite provides the reference relational backend for the sync
// gateway, built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Saluana/or3-chat-sub017/internal/models"
)

// Store implements sync.Backend over a SQLite database. Version assignment
// happens inside the append transaction; combined with SQLite's single
// writer this makes concurrent pushes to the same workspace linearizable.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a Store over an already-migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		now: time.Now,
	}
}

// SetClock overrides the store's time source. Tests use it to age records
// past the retention window.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Append applies ops in input order within one transaction. An op whose
// op_id already exists reuses its row; otherwise the next version for the
// workspace is assigned and a new row inserted. Any failure rolls the whole
// batch back.
func (s *Store) Append(ctx context.Context, workspaceID string, ops []models.PushOp) ([]models.ChangeRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The version counter lives in its own table so that retention deletes
	// can never make a version number eligible for reassignment.
	var lastVersion int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT last_version FROM workspace_versions WHERE workspace_id = ?), 0)`,
		workspaceID,
	).Scan(&lastVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to read current version: %w", err)
	}
	startVersion := lastVersion

	createdAt := s.now().Unix()
	out := make([]models.ChangeRecord, len(ops))
	for i, op := range ops {
		existing, err := readByOpID(ctx, tx, workspaceID, op.Stamp.OpID)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to look up op %s: %w", op.Stamp.OpID, err)
		}
		if err == nil {
			out[i] = *existing
			continue
		}

		lastVersion++
		rec := models.ChangeRecord{
			WorkspaceID:   workspaceID,
			ServerVersion: lastVersion,
			TableName:     op.TableName,
			PrimaryKey:    op.PrimaryKey,
			Operation:     op.Operation,
			Payload:       op.Payload,
			Stamp:         op.Stamp,
			CreatedAt:     createdAt,
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO change_log (workspace_id, server_version, table_name, pk, op, payload, op_id, clock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.WorkspaceID, rec.ServerVersion, rec.TableName, rec.PrimaryKey, rec.Operation,
			nullableJSON(rec.Payload), rec.Stamp.OpID, nullableJSON(rec.Stamp.Clock), rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert change record: %w", err)
		}
		out[i] = rec
	}

	if lastVersion > startVersion {
		_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_versions (workspace_id, last_version) VALUES (?, ?)
		ON CONFLICT(workspace_id) DO UPDATE SET last_version = excluded.last_version
		`, workspaceID, lastVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to advance version counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit push batch: %w", err)
	}
	return out, nil
}

// readByOpID fetches the record previously assigned to op_id, if any.
func readByOpID(ctx context.Context, tx *sql.Tx, workspaceID, opID string) (*models.ChangeRecord, error) {
	row := tx.QueryRowContext(ctx, `
	SELECT workspace_id, server_version, table_name, pk, op, payload, op_id, clock, created_at
	FROM change_log WHERE workspace_id = ? AND op_id = ?
	`, workspaceID, opID)
	return scanRecord(row.Scan)
}

// scanRecord scans one change_log row.
func scanRecord(scan func(...interface{}) error) (*models.ChangeRecord, error) {
	var rec models.ChangeRecord
	var payload, clock sql.NullString
	err := scan(
		&rec.WorkspaceID, &rec.ServerVersion, &rec.TableName, &rec.PrimaryKey,
		&rec.Operation, &payload, &rec.Stamp.OpID, &clock, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		rec.Payload = json.RawMessage(payload.String)
	}
	if clock.Valid {
		rec.Stamp.Clock = json.RawMessage(clock.String)
	}
	return &rec, nil
}

// nullableJSON maps an empty raw message to NULL.
func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// ReadAfter returns up to limit records with server_version > cursor in
// ascending order. The query fetches limit+1 rows and trims, so hasMore is
// evaluated under the exact same table filter as the page itself.
func (s *Store) ReadAfter(ctx context.Context, workspaceID string, cursor int64, tables []string, limit int) ([]models.ChangeRecord, bool, error) {
	query := `
	SELECT workspace_id, server_version, table_name, pk, op, payload, op_id, clock, created_at
	FROM change_log WHERE workspace_id = ? AND server_version > ?
	`
	args := []interface{}{workspaceID, cursor}

	if len(tables) > 0 {
		query += " AND table_name IN (?" + strings.Repeat(",?", len(tables)-1) + ")"
		for _, t := range tables {
			args = append(args, t)
		}
	}

	query += " ORDER BY server_version ASC LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var records []models.ChangeRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, false, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := false
	if len(records) > limit {
		records = records[:limit]
		hasMore = true
	}
	return records, hasMore, nil
}

// MaxVersion returns the highest assigned version for the workspace, or 0.
// It reads the version counter rather than the surviving rows, so retention
// deletes do not move it backwards.
func (s *Store) MaxVersion(ctx context.Context, workspaceID string) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT last_version FROM workspace_versions WHERE workspace_id = ?), 0)`,
		workspaceID,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read max version: %w", err)
	}
	return version, nil
}

// DeleteUpTo deletes records that satisfy both the version cutoff and the
// age cutoff. The workspace_versions counter is untouched, so deleted
// versions are never reassigned.
func (s *Store) DeleteUpTo(ctx context.Context, workspaceID string, versionCutoff int64, createdBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM change_log
	WHERE workspace_id = ? AND server_version <= ? AND created_at < ?
	`, workspaceID, versionCutoff, createdBefore.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete change records: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Workspaces lists all workspace ids with at least one change record.
func (s *Store) Workspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT workspace_id FROM change_log ORDER BY workspace_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
