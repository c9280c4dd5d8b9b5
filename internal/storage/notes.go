package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// InsertNote writes a brand-new row. Callers (the workspace engine) are
// responsible for allocating the id and computing position beforehand.
func InsertNote(ctx context.Context, q Queryer, n *model.Note) error {
	fieldsJSON, err := json.Marshal(n.Fields)
	if err != nil {
		return krillerr.Wrap(krillerr.Json, "marshal fields", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO notes (id, title, node_type, parent_id, position, created_at, modified_at,
			created_by, modified_by, fields_json, is_expanded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.NodeType, n.ParentID, n.Position, n.CreatedAt, n.ModifiedAt,
		n.CreatedBy, n.ModifiedBy, string(fieldsJSON), boolToInt(n.IsExpanded))
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "insert note", err)
	}
	return nil
}

// UpdateNoteRow overwrites an existing row in place — no versioning; the
// op log is the history mechanism here.
func UpdateNoteRow(ctx context.Context, q Queryer, n *model.Note) error {
	fieldsJSON, err := json.Marshal(n.Fields)
	if err != nil {
		return krillerr.Wrap(krillerr.Json, "marshal fields", err)
	}
	_, err = q.ExecContext(ctx, `
		UPDATE notes SET title=?, node_type=?, parent_id=?, position=?, modified_at=?,
			modified_by=?, fields_json=?, is_expanded=?
		WHERE id=?
	`, n.Title, n.NodeType, n.ParentID, n.Position, n.ModifiedAt, n.ModifiedBy,
		string(fieldsJSON), boolToInt(n.IsExpanded), n.ID)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "update note", err)
	}
	return nil
}

// UpdatePosition rewrites only a note's parent/position, used by move and
// gap-closing logic.
func UpdatePosition(ctx context.Context, q Queryer, id string, parentID *string, position int, modifiedAt int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE notes SET parent_id=?, position=?, modified_at=? WHERE id=?`,
		parentID, position, modifiedAt, id)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "update note position", err)
	}
	return nil
}

// SetExpanded flips the per-device is_expanded flag; not logged.
func SetExpanded(ctx context.Context, q Queryer, id string, expanded bool) error {
	res, err := q.ExecContext(ctx, `UPDATE notes SET is_expanded=? WHERE id=?`, boolToInt(expanded), id)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "toggle expansion", err)
	}
	return mustAffect(res)
}

// DeleteNoteRow removes exactly one row by id.
func DeleteNoteRow(ctx context.Context, q Queryer, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id)
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "delete note", err)
	}
	return nil
}

// GetNote fetches a single note by id, returning (nil, nil) if absent.
func GetNote(ctx context.Context, q Queryer, id string) (*model.Note, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, node_type, parent_id, position, created_at, modified_at,
			created_by, modified_by, fields_json, is_expanded
		FROM notes WHERE id=?
	`, id)
	return scanNote(row)
}

// ListChildren returns the children of parentID in ascending position
// order. parentID == nil means root-level notes.
func ListChildren(ctx context.Context, q Queryer, parentID *string) ([]*model.Note, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = q.QueryContext(ctx, baseNoteSelect+` WHERE parent_id IS NULL ORDER BY position ASC`)
	} else {
		rows, err = q.QueryContext(ctx, baseNoteSelect+` WHERE parent_id=? ORDER BY position ASC`, *parentID)
	}
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "list children", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListAll returns every note in the workspace, used to build a
// model.QueryContext snapshot.
func ListAll(ctx context.Context, q Queryer) ([]*model.Note, error) {
	rows, err := q.QueryContext(ctx, baseNoteSelect)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "list all notes", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

// ListOfType returns every note whose node_type equals nodeType.
func ListOfType(ctx context.Context, q Queryer, nodeType string) ([]*model.Note, error) {
	rows, err := q.QueryContext(ctx, baseNoteSelect+` WHERE node_type=? ORDER BY position ASC`, nodeType)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "list notes of type", err)
	}
	defer rows.Close()
	return scanNotes(rows)
}

const baseNoteSelect = `
	SELECT id, title, node_type, parent_id, position, created_at, modified_at,
		created_by, modified_by, fields_json, is_expanded
	FROM notes
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var n model.Note
	var parentID sql.NullString
	var fieldsJSON string
	var isExpanded int
	err := row.Scan(&n.ID, &n.Title, &n.NodeType, &parentID, &n.Position, &n.CreatedAt, &n.ModifiedAt,
		&n.CreatedBy, &n.ModifiedBy, &fieldsJSON, &isExpanded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "scan note", err)
	}
	if parentID.Valid {
		n.ParentID = &parentID.String
	}
	n.IsExpanded = isExpanded != 0
	var fields model.FieldMap
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, krillerr.Wrap(krillerr.Json, "unmarshal fields_json for note "+n.ID, err)
	}
	n.Fields = fields
	return &n, nil
}

func scanNotes(rows *sql.Rows) ([]*model.Note, error) {
	var out []*model.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "iterate notes", err)
	}
	return out, nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return krillerr.Wrap(krillerr.Database, "rows affected", err)
	}
	if n == 0 {
		return krillerr.New(krillerr.NoteNotFound, "no row updated")
	}
	return nil
}
