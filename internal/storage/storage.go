// Package storage owns the single SQLite file that backs one workspace:
// creation, validation, forward-only column migrations, and the shared/
// exclusive connection accessors the workspace engine needs.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/logging"
)

// Storage owns the one *sql.DB connection backing a workspace file. All
// writes go through explicit transactions opened on the same connection;
// there is exactly one Storage per open workspace.
type Storage struct {
	db   *sql.DB
	path string
}

// Create creates a new workspace file at path and applies the embedded
// DDL. It fails if path already exists and contains a populated file.
func Create(ctx context.Context, path string) (*Storage, error) {
	log := logging.WithComponent("storage")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "open new workspace file", err)
	}
	db.SetMaxOpenConns(1)

	var existing int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master`).Scan(&existing); err != nil {
		db.Close()
		return nil, krillerr.Wrap(krillerr.InvalidWorkspace, "inspect file at "+path, err)
	}
	if existing > 0 {
		db.Close()
		return nil, krillerr.New(krillerr.InvalidWorkspace, "workspace file "+path+" already exists")
	}

	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, krillerr.Wrap(krillerr.Database, "apply schema DDL", err)
	}
	log.Info().Str("path", path).Msg("workspace created")
	return &Storage{db: db, path: path}, nil
}

// Open opens an existing workspace file, verifies the three core tables
// exist, and applies any pending forward-only migrations.
func Open(ctx context.Context, path string) (*Storage, error) {
	log := logging.WithComponent("storage")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.InvalidWorkspace, "open workspace file", err)
	}
	db.SetMaxOpenConns(1)

	if err := verifyCoreTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("workspace opened")
	return &Storage{db: db, path: path}, nil
}

func verifyCoreTables(ctx context.Context, db *sql.DB) error {
	for _, table := range coreTables {
		var name string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err == sql.ErrNoRows {
			return krillerr.New(krillerr.InvalidWorkspace,
				fmt.Sprintf("missing required table %q — not a krillnotes workspace", table))
		}
		if err != nil {
			return krillerr.Wrap(krillerr.Database, "verify core tables", err)
		}
	}
	return nil
}

// migrate applies every columnMigration whose column pragma_table_info
// doesn't already report, in order, idempotently.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		has, err := hasColumn(ctx, db, m.table, m.column)
		if err != nil {
			return krillerr.Wrap(krillerr.Database, "inspect table_info", err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s %s", m.table, m.ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return krillerr.Wrap(krillerr.Database, "apply migration "+m.table+"."+m.column, err)
		}
		logging.WithComponent("storage").Info().
			Str("table", m.table).Str("column", m.column).Msg("migration applied")
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err
	}
	for rows.Next() {
		scan := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scan {
			ptrs[i] = &scan[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return false, err
		}
		for i, c := range cols {
			if c != "name" {
				continue
			}
			if name, ok := scan[i].(string); ok && name == column {
				return true, nil
			}
		}
	}
	return false, rows.Err()
}

// Conn returns the shared *sql.DB handle for read-only queries.
func (s *Storage) Conn() *sql.DB { return s.db }

// Path returns the workspace file's path on disk.
func (s *Storage) Path() string { return s.path }

// BeginTx opens an exclusive write transaction. All of the workspace
// engine's mutating operations call this exactly once per public method.
func (s *Storage) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, krillerr.Wrap(krillerr.Database, "begin transaction", err)
	}
	return tx, nil
}

// Close closes the underlying connection.
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
