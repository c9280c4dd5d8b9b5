package oplog

import (
	"context"
	"encoding/json"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/storage"
)

// Log appends one operation row inside the caller's transaction.
func Log(ctx context.Context, q storage.Queryer, op Operation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO operations (operation_id, timestamp, device_id, operation_type, operation_data, synced)
		VALUES (?, ?, ?, ?, ?, 0)
	`, op.OperationID, op.Timestamp, op.DeviceID, string(op.Type), string(op.Data))
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "append operation log entry", err)
	}
	return nil
}

// PurgePolicy is a closed, exhaustively-switched strategy for trimming
// the operation log.
type PurgePolicy interface {
	isPurgePolicy()
}

// LocalOnly keeps only the KeepLast most recent rows.
type LocalOnly struct {
	KeepLast int
}

func (LocalOnly) isPurgePolicy() {}

// WithSync deletes synced rows older than RetentionDays.
type WithSync struct {
	RetentionDays int
}

func (WithSync) isPurgePolicy() {}

// PurgeIfNeeded enforces policy inside the caller's transaction.
func PurgeIfNeeded(ctx context.Context, q storage.Queryer, policy PurgePolicy, nowUnix int64) error {
	switch p := policy.(type) {
	case LocalOnly:
		_, err := q.ExecContext(ctx, `
			DELETE FROM operations WHERE id NOT IN (
				SELECT id FROM operations ORDER BY id DESC LIMIT ?
			)
		`, p.KeepLast)
		if err != nil {
			return krillerr.Wrap(krillerr.Database, "purge operations (local-only)", err)
		}
		return nil
	case WithSync:
		cutoff := nowUnix - int64(p.RetentionDays)*86400
		_, err := q.ExecContext(ctx, `
			DELETE FROM operations WHERE synced=1 AND timestamp < ?
		`, cutoff)
		if err != nil {
			return krillerr.Wrap(krillerr.Database, "purge operations (with-sync)", err)
		}
		return nil
	default:
		return krillerr.New(krillerr.Database, "unknown purge policy")
	}
}

// Filter narrows List's result set. Zero values mean "no constraint".
type Filter struct {
	Type  Type
	Since int64
	Until int64
}

// Summary is one row of List's result: the operation id, timestamp,
// device, type, and a best-effort human target name extracted from the
// payload.
type Summary struct {
	OperationID string `json:"operationId"`
	Timestamp   int64  `json:"timestamp"`
	DeviceID    string `json:"deviceId"`
	Type        Type   `json:"type"`
	TargetName  string `json:"targetName,omitempty"`
}

// List returns matching operations newest-first.
func List(ctx context.Context, q storage.Queryer, f Filter) ([]Summary, error) {
	query := `SELECT operation_id, timestamp, device_id, operation_type, operation_data FROM operations WHERE 1=1`
	var args []any
	if f.Type != "" {
		query += ` AND operation_type=?`
		args = append(args, string(f.Type))
	}
	if f.Since != 0 {
		query += ` AND timestamp >= ?`
		args = append(args, f.Since)
	}
	if f.Until != 0 {
		query += ` AND timestamp <= ?`
		args = append(args, f.Until)
	}
	query += ` ORDER BY id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "list operations", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var data json.RawMessage
		if err := rows.Scan(&s.OperationID, &s.Timestamp, &s.DeviceID, &s.Type, &data); err != nil {
			return nil, krillerr.Wrap(krillerr.Database, "scan operation summary", err)
		}
		s.TargetName = targetName(s.Type, data)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PurgeAll deletes every row, returning the count deleted.
func PurgeAll(ctx context.Context, q storage.Queryer) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM operations`)
	if err != nil {
		return 0, krillerr.Wrap(krillerr.Database, "purge all operations", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, krillerr.Wrap(krillerr.Database, "rows affected", err)
	}
	return n, nil
}
