// Package workspace implements the Workspace Engine: the single-writer
// façade over one workspace's storage, schema registry, and script engine.
// Every mutating method runs under Workspace's own mutex and exactly one
// database transaction, matching the engine-wide-mutex model cuemby-warren's
// cluster manager uses around its own single-writer state machine.
package workspace

import (
	"context"
	"database/sql"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/careck/krillnotes/internal/device"
	"github.com/careck/krillnotes/internal/exportimport"
	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/logging"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/oplog"
	"github.com/careck/krillnotes/internal/schema"
	"github.com/careck/krillnotes/internal/script"
	"github.com/careck/krillnotes/internal/storage"
)

// InsertMode selects where create_note places the new note relative to the
// currently selected one.
type InsertMode string

const (
	AsChild   InsertMode = "as_child"
	AsSibling InsertMode = "as_sibling"
)

// DeleteStrategy selects delete_note's subtree handling.
type DeleteStrategy string

const (
	DeleteAll       DeleteStrategy = "delete_all"
	PromoteChildren DeleteStrategy = "promote_children"
)

// Workspace owns one open workspace file end to end: storage connection,
// schema registry, script engine, device identity, and the mutex
// serializing every mutating call.
type Workspace struct {
	mu sync.Mutex

	storage  *storage.Storage
	registry *schema.Registry
	engine   *script.Engine

	device        string
	currentUserID int64
	purgePolicy   oplog.PurgePolicy

	scriptErrors []schema.ScriptError
}

// Create initializes a brand-new workspace file at path, deriving and
// persisting this host's device identity. Fails if no network interface
// with a hardware address is available.
func Create(ctx context.Context, path string, purgePolicy oplog.PurgePolicy) (*Workspace, error) {
	deviceID, err := device.Derive()
	if err != nil {
		return nil, err
	}
	st, err := storage.Create(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := storage.SetMeta(ctx, st.Conn(), storage.MetaDeviceID, deviceID); err != nil {
		st.Close()
		return nil, err
	}
	if err := storage.SetMeta(ctx, st.Conn(), storage.MetaCurrentUserID, "0"); err != nil {
		st.Close()
		return nil, err
	}

	w := &Workspace{
		storage:     st,
		registry:    schema.New(),
		device:      deviceID,
		purgePolicy: purgePolicy,
	}
	w.engine = script.NewEngine(w.registry)
	logging.WithWorkspace(path).Info().Msg("workspace created")
	return w, nil
}

// Open opens an existing workspace file and reloads its script registry.
// Script load errors are collected on the Workspace (see ScriptErrors) but
// do not fail Open — a workspace with a broken script is still usable for
// everything except the broken schema's CreateNote/UpdateNote.
func Open(ctx context.Context, path string, purgePolicy oplog.PurgePolicy) (*Workspace, error) {
	st, err := storage.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	deviceID, ok, err := storage.GetMeta(ctx, st.Conn(), storage.MetaDeviceID)
	if err != nil {
		st.Close()
		return nil, err
	}
	if !ok {
		st.Close()
		return nil, krillerr.New(krillerr.InvalidWorkspace, "workspace is missing its device_id")
	}

	w := &Workspace{
		storage:     st,
		registry:    schema.New(),
		device:      deviceID,
		purgePolicy: purgePolicy,
	}
	w.engine = script.NewEngine(w.registry)

	scripts, err := storage.ListUserScripts(ctx, st.Conn())
	if err != nil {
		st.Close()
		return nil, err
	}
	w.scriptErrors = w.engine.Reload(scripts)

	if raw, ok, err := storage.GetMeta(ctx, st.Conn(), storage.MetaCurrentUserID); err == nil && ok {
		if uid, err := strconv.ParseInt(raw, 10, 64); err == nil {
			w.currentUserID = uid
		}
	}

	logging.WithWorkspace(path).Info().Int("scriptErrors", len(w.scriptErrors)).Msg("workspace opened")
	return w, nil
}

// ScriptErrors returns the non-fatal errors collected by the most recent
// script load pass (Open, or any user-script create, update, delete or
// reorder).
func (w *Workspace) ScriptErrors() []schema.ScriptError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scriptErrors
}

// Path returns the workspace file's location on disk.
func (w *Workspace) Path() string { return w.storage.Path() }

// Export writes a full archive of this workspace's notes and user scripts
// to out, encrypting every entry under password when non-empty.
func (w *Workspace) Export(ctx context.Context, out io.Writer, password string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return exportimport.Export(ctx, w.storageConn(), out, password)
}

// Close releases the underlying database connection.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storage.Close()
}

// withTx runs fn inside one transaction, committing on success and
// rolling back on any error fn returns. Callers must already hold w.mu.
func (w *Workspace) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := w.storage.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return krillerr.Wrap(krillerr.Database, "commit transaction", err)
	}
	return nil
}

// snapshot builds a QueryContext over every note currently in q, for
// handing to a hook or tree action.
func (w *Workspace) snapshot(ctx context.Context, q storage.Queryer) (*model.QueryContext, error) {
	notes, err := storage.ListAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return model.NewQueryContext(notes), nil
}

func now() int64 { return time.Now().Unix() }

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

