package storage

import (
	"context"
	"database/sql"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
)

const userScriptSelect = `
	SELECT id, name, description, source_code, load_order, enabled, created_at, modified_at
	FROM user_scripts
`

func scanUserScript(row rowScanner) (*model.UserScript, error) {
	var s model.UserScript
	var enabled int
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.SourceCode, &s.LoadOrder, &enabled,
		&s.CreatedAt, &s.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "scan user_script", err)
	}
	s.Enabled = enabled != 0
	return &s, nil
}

// InsertUserScript writes a new script row.
func InsertUserScript(ctx context.Context, q Queryer, s *model.UserScript) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_scripts (id, name, description, source_code, load_order, enabled, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Name, s.Description, s.SourceCode, s.LoadOrder, boolToInt(s.Enabled), s.CreatedAt, s.ModifiedAt)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "insert user_script", err)
	}
	return nil
}

// UpdateUserScript overwrites an existing script row's mutable fields.
func UpdateUserScript(ctx context.Context, q Queryer, s *model.UserScript) error {
	_, err := q.ExecContext(ctx, `
		UPDATE user_scripts SET name=?, description=?, source_code=?, enabled=?, modified_at=?
		WHERE id=?
	`, s.Name, s.Description, s.SourceCode, boolToInt(s.Enabled), s.ModifiedAt, s.ID)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "update user_script", err)
	}
	return nil
}

// SetUserScriptLoadOrder rewrites just the load_order column.
func SetUserScriptLoadOrder(ctx context.Context, q Queryer, id string, order int) error {
	_, err := q.ExecContext(ctx, `UPDATE user_scripts SET load_order=? WHERE id=?`, order, id)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "reorder user_script", err)
	}
	return nil
}

// DeleteUserScript removes a script row by id.
func DeleteUserScript(ctx context.Context, q Queryer, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM user_scripts WHERE id=?`, id)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "delete user_script", err)
	}
	return nil
}

// GetUserScript fetches one script by id.
func GetUserScript(ctx context.Context, q Queryer, id string) (*model.UserScript, error) {
	row := q.QueryRowContext(ctx, userScriptSelect+` WHERE id=?`, id)
	return scanUserScript(row)
}

// ListUserScripts returns every script ordered by load_order ascending.
func ListUserScripts(ctx context.Context, q Queryer) ([]*model.UserScript, error) {
	rows, err := q.QueryContext(ctx, userScriptSelect+` ORDER BY load_order ASC`)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "list user_scripts", err)
	}
	defer rows.Close()

	var out []*model.UserScript
	for rows.Next() {
		s, err := scanUserScript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
