package workspace

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/oplog"
	"github.com/careck/krillnotes/internal/schema"
	"github.com/careck/krillnotes/internal/storage"
)

// CreateUserScript inserts a new script row, appended at the end of the
// current load order, then reloads the registry.
func (w *Workspace) CreateUserScript(ctx context.Context, name, sourceCode string) (*model.UserScript, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var created *model.UserScript
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := storage.ListUserScripts(ctx, tx)
		if err != nil {
			return err
		}
		fm := schema.ParseFrontMatter(sourceCode)
		scriptName := name
		if scriptName == "" {
			scriptName = fm.Name
		}

		s := &model.UserScript{
			ID:          uuid.NewString(),
			Name:        scriptName,
			Description: fm.Description,
			SourceCode:  sourceCode,
			LoadOrder:   len(existing) + 1,
			Enabled:     true,
			CreatedAt:   now(),
			ModifiedAt:  now(),
		}
		if err := storage.InsertUserScript(ctx, tx, s); err != nil {
			return err
		}

		op, err := oplog.NewCreateUserScript(w.device, s.CreatedAt, oplog.UserScriptPayload{ScriptID: s.ID, Name: s.Name})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode CreateUserScript operation", err)
		}
		if err := oplog.Log(ctx, tx, op); err != nil {
			return err
		}
		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := w.reloadFromStorage(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateUserScript overwrites name/description/source/enabled for id, then
// reloads the registry.
func (w *Workspace) UpdateUserScript(ctx context.Context, id, name, sourceCode string, enabled bool) (*model.UserScript, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var updated *model.UserScript
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := storage.GetUserScript(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return krillerr.New(krillerr.NoteNotFound, "user script "+id+" not found")
		}
		fm := schema.ParseFrontMatter(sourceCode)
		scriptName := name
		if scriptName == "" {
			scriptName = fm.Name
		}

		existing.Name = scriptName
		existing.Description = fm.Description
		existing.SourceCode = sourceCode
		existing.Enabled = enabled
		existing.ModifiedAt = now()
		if err := storage.UpdateUserScript(ctx, tx, existing); err != nil {
			return err
		}

		op, err := oplog.NewUpdateUserScript(w.device, existing.ModifiedAt, oplog.UserScriptPayload{
			ScriptID: existing.ID, Name: existing.Name,
		})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode UpdateUserScript operation", err)
		}
		if err := oplog.Log(ctx, tx, op); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := w.reloadFromStorage(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUserScript removes id and reloads the registry.
func (w *Workspace) DeleteUserScript(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := storage.GetUserScript(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return krillerr.New(krillerr.NoteNotFound, "user script "+id+" not found")
		}
		if err := storage.DeleteUserScript(ctx, tx, id); err != nil {
			return err
		}
		op, err := oplog.NewDeleteUserScript(w.device, now(), oplog.UserScriptPayload{ScriptID: id, Name: existing.Name})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode DeleteUserScript operation", err)
		}
		return oplog.Log(ctx, tx, op)
	})
	if err != nil {
		return err
	}
	return w.reloadFromStorage(ctx)
}

// ReorderAllUserScripts rewrites load_order as the 1-based index of ids,
// then reloads the script registry.
func (w *Workspace) ReorderAllUserScripts(ctx context.Context, ids []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.withTx(ctx, func(tx *sql.Tx) error {
		for i, id := range ids {
			if err := storage.SetUserScriptLoadOrder(ctx, tx, id, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return w.reloadFromStorage(ctx)
}

// ListUserScripts returns every script ordered by load_order.
func (w *Workspace) ListUserScripts(ctx context.Context) ([]*model.UserScript, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.ListUserScripts(ctx, w.storageConn())
}

// reloadFromStorage re-reads every script row and rebuilds the registry.
// Callers must already hold w.mu (it does not lock/unlock itself, unlike
// the other public methods, since every caller above is itself already
// inside a locked section).
func (w *Workspace) reloadFromStorage(ctx context.Context) error {
	scripts, err := storage.ListUserScripts(ctx, w.storageConn())
	if err != nil {
		return err
	}
	w.scriptErrors = w.engine.Reload(scripts)
	return nil
}

// GetAllSchemas returns every currently registered schema.
func (w *Workspace) GetAllSchemas(ctx context.Context) []*model.Schema {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.All()
}

// GetSchemaFields returns the field definitions for one schema name.
func (w *Workspace) GetSchemaFields(ctx context.Context, name string) ([]model.FieldDefinition, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.registry.Get(name)
	if s == nil {
		return nil, krillerr.New(krillerr.SchemaNotFound, fmt.Sprintf("unknown schema %q", name))
	}
	return s.Fields, nil
}

// GetNodeTypes returns every registered schema name.
func (w *Workspace) GetNodeTypes(ctx context.Context) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registry.Names()
}
