package storage

// schemaDDL is the embedded schema for a freshly created workspace file,
// extended with the operations, workspace_meta and user_scripts tables.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	node_type     TEXT NOT NULL,
	parent_id     TEXT,
	position      INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	modified_at   INTEGER NOT NULL,
	created_by    INTEGER NOT NULL DEFAULT 0,
	modified_by   INTEGER NOT NULL DEFAULT 0,
	fields_json   TEXT NOT NULL DEFAULT '{}',
	is_expanded   INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id);
CREATE INDEX IF NOT EXISTS idx_notes_type ON notes(node_type);

CREATE TABLE IF NOT EXISTS operations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	operation_id     TEXT NOT NULL,
	timestamp        INTEGER NOT NULL,
	device_id        TEXT NOT NULL,
	operation_type   TEXT NOT NULL,
	operation_data   TEXT NOT NULL,
	synced           INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_operations_type ON operations(operation_type);
CREATE INDEX IF NOT EXISTS idx_operations_timestamp ON operations(timestamp);
CREATE INDEX IF NOT EXISTS idx_operations_synced ON operations(synced);

CREATE TABLE IF NOT EXISTS workspace_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_scripts (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	source_code   TEXT NOT NULL,
	load_order    INTEGER NOT NULL,
	enabled       INTEGER NOT NULL DEFAULT 1,
	created_at    INTEGER NOT NULL,
	modified_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_scripts_load_order ON user_scripts(load_order);
`

// coreTables lists the tables Open() verifies exist before trusting the
// file is a valid workspace.
var coreTables = []string{"notes", "operations", "workspace_meta"}

// columnMigration describes one forward-only `ALTER TABLE ... ADD COLUMN`,
// applied only if pragma_table_info reports the column missing.
type columnMigration struct {
	table  string
	column string
	ddl    string // the full "ADD COLUMN <name> <type> [DEFAULT ...]" clause
}

// migrations is the append-only ledger of schema evolutions applied to
// existing workspace files. Add to the end; never edit or remove an entry
// once released — migrations are forward-only.
var migrations = []columnMigration{
	{table: "user_scripts", column: "enabled", ddl: "ADD COLUMN enabled INTEGER NOT NULL DEFAULT 1"},
}
