package storage

import (
	"context"
	"database/sql"

	"github.com/careck/krillnotes/internal/krillerr"
)

// GetMeta reads one workspace_meta key, returning ("", false, nil) if
// absent.
func GetMeta(ctx context.Context, q Queryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM workspace_meta WHERE key=?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, krillerr.Wrap(krillerr.Database, "read workspace_meta", err)
	}
	return value, true, nil
}

// SetMeta upserts one workspace_meta key/value pair.
func SetMeta(ctx context.Context, q Queryer, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO workspace_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "write workspace_meta", err)
	}
	return nil
}

// DeleteMeta removes a workspace_meta key, if present.
func DeleteMeta(ctx context.Context, q Queryer, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM workspace_meta WHERE key=?`, key)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "delete workspace_meta", err)
	}
	return nil
}

// Well-known workspace_meta keys.
const (
	MetaDeviceID       = "device_id"
	MetaCurrentUserID  = "current_user_id"
	MetaSelectedNoteID = "selected_note_id"
)
