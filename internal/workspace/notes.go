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

// CreateNote inserts a new note as a child or sibling of selectedID,
// running on_add_child on the new parent and logging exactly one
// CreateNote operation.
func (w *Workspace) CreateNote(ctx context.Context, selectedID string, mode InsertMode, nodeType string) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var created *model.Note
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		s := w.registry.Get(nodeType)
		if s == nil {
			return krillerr.New(krillerr.SchemaNotFound, fmt.Sprintf("unknown node type %q", nodeType))
		}

		selected, err := storage.GetNote(ctx, tx, selectedID)
		if err != nil {
			return err
		}
		if selected == nil {
			return krillerr.New(krillerr.NoteNotFound, "selected note "+selectedID+" not found")
		}

		parentID, position, err := w.placementFor(ctx, tx, selected, mode)
		if err != nil {
			return err
		}
		if parentID != nil {
			parentNote, err := storage.GetNote(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			if parentNote == nil {
				return krillerr.New(krillerr.NoteNotFound, "parent note "+*parentID+" not found")
			}
			if !s.AllowsParent(parentNote.NodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow parent type %q", nodeType, parentNote.NodeType))
			}
			if parentSchema := w.registry.Get(parentNote.NodeType); parentSchema != nil && !parentSchema.AllowsChild(nodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow child type %q", parentNote.NodeType, nodeType))
			}
		}

		n := &model.Note{
			ID:         uuid.NewString(),
			NodeType:   nodeType,
			ParentID:   parentID,
			Position:   position,
			CreatedAt:  now(),
			ModifiedAt: now(),
			CreatedBy:  w.currentUserID,
			ModifiedBy: w.currentUserID,
			Fields:     schema.ApplyDefaults(s, nil),
			IsExpanded: true,
		}

		if parentID != nil {
			parentNote, err := storage.GetNote(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			snap, err := w.snapshot(ctx, tx)
			if err != nil {
				return err
			}
			newParent, newChild, err := w.engine.RunOnAddChild(parentNote.NodeType, parentNote, n, snap)
			if err != nil {
				return err
			}
			n = newChild
			if newParent != parentNote {
				if err := storage.UpdateNoteRow(ctx, tx, newParent); err != nil {
					return err
				}
			}
		}

		if err := storage.InsertNote(ctx, tx, n); err != nil {
			return err
		}

		op, err := oplog.NewCreateNote(w.device, n.CreatedAt, oplog.CreateNotePayload{
			NoteID: n.ID, Title: n.Title, NodeType: n.NodeType,
			ParentID: derefOr(n.ParentID, ""), Position: n.Position,
		})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode CreateNote operation", err)
		}
		if err := oplog.Log(ctx, tx, op); err != nil {
			return err
		}
		if err := oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, n.CreatedAt); err != nil {
			return err
		}

		created = n
		return nil
	})
	return created, err
}

// CreateNoteRoot inserts a new root-level note (no parent), appended after
// the existing root notes.
func (w *Workspace) CreateNoteRoot(ctx context.Context, nodeType string) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var created *model.Note
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		s := w.registry.Get(nodeType)
		if s == nil {
			return krillerr.New(krillerr.SchemaNotFound, fmt.Sprintf("unknown node type %q", nodeType))
		}
		if !s.AllowsParent("") {
			return krillerr.New(krillerr.InvalidMove, fmt.Sprintf("schema %q does not allow a root placement", nodeType))
		}

		roots, err := storage.ListChildren(ctx, tx, nil)
		if err != nil {
			return err
		}

		n := &model.Note{
			ID:         uuid.NewString(),
			NodeType:   nodeType,
			Position:   len(roots),
			CreatedAt:  now(),
			ModifiedAt: now(),
			CreatedBy:  w.currentUserID,
			ModifiedBy: w.currentUserID,
			Fields:     schema.ApplyDefaults(s, nil),
			IsExpanded: true,
		}
		if err := storage.InsertNote(ctx, tx, n); err != nil {
			return err
		}

		op, err := oplog.NewCreateNote(w.device, n.CreatedAt, oplog.CreateNotePayload{
			NoteID: n.ID, Title: n.Title, NodeType: n.NodeType, Position: n.Position,
		})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode CreateNote operation", err)
		}
		if err := oplog.Log(ctx, tx, op); err != nil {
			return err
		}
		if err := oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, n.CreatedAt); err != nil {
			return err
		}

		created = n
		return nil
	})
	return created, err
}

// placementFor resolves the parent_id/position pair create_note should use,
// shifting following siblings when inserting AsSibling. Callers must hold
// an open transaction.
func (w *Workspace) placementFor(ctx context.Context, tx *sql.Tx, selected *model.Note, mode InsertMode) (*string, int, error) {
	switch mode {
	case AsChild:
		id := selected.ID
		children, err := storage.ListChildren(ctx, tx, &id)
		if err != nil {
			return nil, 0, err
		}
		return &id, len(children), nil

	case AsSibling:
		siblings, err := storage.ListChildren(ctx, tx, selected.ParentID)
		if err != nil {
			return nil, 0, err
		}
		newPosition := selected.Position + 1
		for _, sib := range siblings {
			if sib.Position > selected.Position {
				if err := storage.UpdatePosition(ctx, tx, sib.ID, sib.ParentID, sib.Position+1, now()); err != nil {
					return nil, 0, err
				}
			}
		}
		return selected.ParentID, newPosition, nil

	default:
		return nil, 0, krillerr.New(krillerr.InvalidMove, fmt.Sprintf("unknown insert mode %q", mode))
	}
}

// UpdateNote runs on_save, enforces required fields, writes the row, and
// logs a single summary UpdateField operation naming every field whose
// stored value changed.
func (w *Workspace) UpdateNote(ctx context.Context, id, title string, fields model.FieldMap) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var updated *model.Note
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := storage.GetNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
		}
		s := w.registry.Get(existing.NodeType)
		if s == nil {
			return krillerr.New(krillerr.SchemaNotFound,
				fmt.Sprintf("schema %q is no longer registered; note is read-only", existing.NodeType))
		}

		candidate := existing.Clone()
		candidate.Title = title
		merged := existing.Fields.Clone()
		for k, v := range fields {
			merged[k] = v
		}
		candidate.Fields = schema.ApplyDefaults(s, merged)

		snap, err := w.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		saved, err := w.engine.RunOnSave(existing.NodeType, candidate, snap)
		if err != nil {
			return err
		}
		if err := schema.ValidateRequired(s, saved.Fields); err != nil {
			return err
		}

		saved.ModifiedAt = now()
		saved.ModifiedBy = w.currentUserID
		if err := storage.UpdateNoteRow(ctx, tx, saved); err != nil {
			return err
		}

		changed := changedFieldNames(existing, saved)
		if len(changed) > 0 {
			op, err := oplog.NewUpdateField(w.device, saved.ModifiedAt, oplog.UpdateFieldPayload{
				NoteID: saved.ID, ChangedFields: changed,
			})
			if err != nil {
				return krillerr.Wrap(krillerr.Json, "encode UpdateField operation", err)
			}
			if err := oplog.Log(ctx, tx, op); err != nil {
				return err
			}
			if err := oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, saved.ModifiedAt); err != nil {
				return err
			}
		}

		updated = saved
		return nil
	})
	return updated, err
}

// changedFieldNames compares two notes' title and fields, returning the
// names of whatever differs. "title" is reported as its own pseudo-field
// name alongside any changed schema fields.
func changedFieldNames(before, after *model.Note) []string {
	var out []string
	if before.Title != after.Title {
		out = append(out, "title")
	}
	seen := make(map[string]struct{})
	for k, v := range after.Fields {
		seen[k] = struct{}{}
		if old, ok := before.Fields[k]; !ok || !old.Equal(v) {
			out = append(out, k)
		}
	}
	for k := range before.Fields {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// MoveNote rejects cycles and self-parenting, closes the gap in the old
// sibling group, opens one in the new group, writes the move, and runs
// on_add_child on the new parent.
func (w *Workspace) MoveNote(ctx context.Context, id string, newParentID *string, newPosition int) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var moved *model.Note
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		n, err := storage.GetNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == nil {
			return krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
		}

		if newParentID != nil {
			if *newParentID == id {
				return krillerr.New(krillerr.InvalidMove, "a note cannot be its own parent")
			}
			if err := w.rejectCycle(ctx, tx, id, *newParentID); err != nil {
				return err
			}
			parentNote, err := storage.GetNote(ctx, tx, *newParentID)
			if err != nil {
				return err
			}
			if parentNote == nil {
				return krillerr.New(krillerr.NoteNotFound, "parent note "+*newParentID+" not found")
			}
			if nSchema := w.registry.Get(n.NodeType); nSchema != nil && !nSchema.AllowsParent(parentNote.NodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow parent type %q", n.NodeType, parentNote.NodeType))
			}
			if parentSchema := w.registry.Get(parentNote.NodeType); parentSchema != nil && !parentSchema.AllowsChild(n.NodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow child type %q", parentNote.NodeType, n.NodeType))
			}
		}

		oldParentID, oldPosition := n.ParentID, n.Position

		oldSiblings, err := storage.ListChildren(ctx, tx, oldParentID)
		if err != nil {
			return err
		}
		for _, sib := range oldSiblings {
			if sib.ID == id {
				continue
			}
			if sib.Position > oldPosition {
				if err := storage.UpdatePosition(ctx, tx, sib.ID, sib.ParentID, sib.Position-1, now()); err != nil {
					return err
				}
			}
		}

		newSiblings, err := storage.ListChildren(ctx, tx, newParentID)
		if err != nil {
			return err
		}
		for _, sib := range newSiblings {
			if sib.ID == id {
				continue
			}
			if sib.Position >= newPosition {
				if err := storage.UpdatePosition(ctx, tx, sib.ID, sib.ParentID, sib.Position+1, now()); err != nil {
					return err
				}
			}
		}

		moveTime := now()
		if err := storage.UpdatePosition(ctx, tx, id, newParentID, newPosition, moveTime); err != nil {
			return err
		}

		op, err := oplog.NewMoveNote(w.device, moveTime, oplog.MoveNotePayload{
			NoteID: id, OldParentID: derefOr(oldParentID, ""), NewParentID: derefOr(newParentID, ""),
			NewPosition: newPosition,
		})
		if err != nil {
			return krillerr.Wrap(krillerr.Json, "encode MoveNote operation", err)
		}
		if err := oplog.Log(ctx, tx, op); err != nil {
			return err
		}
		if err := oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, moveTime); err != nil {
			return err
		}

		if newParentID != nil {
			parentNote, err := storage.GetNote(ctx, tx, *newParentID)
			if err != nil {
				return err
			}
			n.ParentID = newParentID
			n.Position = newPosition
			snap, err := w.snapshot(ctx, tx)
			if err != nil {
				return err
			}
			newParent, newChild, err := w.engine.RunOnAddChild(parentNote.NodeType, parentNote, n, snap)
			if err != nil {
				return err
			}
			if newParent != parentNote {
				if err := storage.UpdateNoteRow(ctx, tx, newParent); err != nil {
					return err
				}
			}
			if newChild != n {
				if err := storage.UpdateNoteRow(ctx, tx, newChild); err != nil {
					return err
				}
				n = newChild
			}
		} else {
			n.ParentID = nil
			n.Position = newPosition
		}

		moved = n
		return nil
	})
	return moved, err
}

// rejectCycle walks newParentID's ancestor chain, failing if it encounters
// id (which would make id its own descendant's parent).
func (w *Workspace) rejectCycle(ctx context.Context, tx *sql.Tx, id, newParentID string) error {
	cursor := newParentID
	for {
		if cursor == id {
			return krillerr.New(krillerr.InvalidMove, "move would create a cycle")
		}
		n, err := storage.GetNote(ctx, tx, cursor)
		if err != nil {
			return err
		}
		if n == nil || n.ParentID == nil {
			return nil
		}
		cursor = *n.ParentID
	}
}

// DeleteNote removes id per strategy: DeleteAll recursively deletes the
// whole subtree; PromoteChildren re-parents id's direct children to its own
// parent, appended at the tail, then deletes only id. Each deleted note
// emits one DeleteNote operation.
func (w *Workspace) DeleteNote(ctx context.Context, id string, strategy DeleteStrategy) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.withTx(ctx, func(tx *sql.Tx) error {
		target, err := storage.GetNote(ctx, tx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
		}

		switch strategy {
		case DeleteAll:
			if err := w.deleteSubtree(ctx, tx, target); err != nil {
				return err
			}
		case PromoteChildren:
			if err := w.promoteChildrenAndDelete(ctx, tx, target); err != nil {
				return err
			}
		default:
			return krillerr.New(krillerr.InvalidMove, fmt.Sprintf("unknown delete strategy %q", strategy))
		}

		oldSiblings, err := storage.ListChildren(ctx, tx, target.ParentID)
		if err != nil {
			return err
		}
		for _, sib := range oldSiblings {
			if sib.Position > target.Position {
				if err := storage.UpdatePosition(ctx, tx, sib.ID, sib.ParentID, sib.Position-1, now()); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (w *Workspace) deleteSubtree(ctx context.Context, tx *sql.Tx, n *model.Note) error {
	children, err := storage.ListChildren(ctx, tx, &n.ID)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := w.deleteSubtree(ctx, tx, c); err != nil {
			return err
		}
	}
	if err := storage.DeleteNoteRow(ctx, tx, n.ID); err != nil {
		return err
	}
	return w.logDeleteNote(ctx, tx, n)
}

func (w *Workspace) promoteChildrenAndDelete(ctx context.Context, tx *sql.Tx, n *model.Note) error {
	children, err := storage.ListChildren(ctx, tx, &n.ID)
	if err != nil {
		return err
	}
	newSiblings, err := storage.ListChildren(ctx, tx, n.ParentID)
	if err != nil {
		return err
	}
	tail := len(newSiblings) - 1 // n itself is one of newSiblings; it's removed below
	for _, child := range children {
		tail++
		if err := storage.UpdatePosition(ctx, tx, child.ID, n.ParentID, tail, now()); err != nil {
			return err
		}
	}
	if err := storage.DeleteNoteRow(ctx, tx, n.ID); err != nil {
		return err
	}
	return w.logDeleteNote(ctx, tx, n)
}

func (w *Workspace) logDeleteNote(ctx context.Context, tx *sql.Tx, n *model.Note) error {
	op, err := oplog.NewDeleteNote(w.device, now(), oplog.DeleteNotePayload{NoteID: n.ID, Title: n.Title})
	if err != nil {
		return krillerr.Wrap(krillerr.Json, "encode DeleteNote operation", err)
	}
	if err := oplog.Log(ctx, tx, op); err != nil {
		return err
	}
	return oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, op.Timestamp)
}

// DeepCopyNote BFS-loads sourceID's subtree, allocates a fresh id for every
// node, validates allowed_parent_types/allowed_children_types for the
// copy's root only, and inserts every node preserving relative positions.
// Each inserted node emits one CreateNote operation.
func (w *Workspace) DeepCopyNote(ctx context.Context, sourceID string, targetParentID *string, position int) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var rootCopy *model.Note
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		source, err := storage.GetNote(ctx, tx, sourceID)
		if err != nil {
			return err
		}
		if source == nil {
			return krillerr.New(krillerr.NoteNotFound, "source note "+sourceID+" not found")
		}

		if targetParentID != nil {
			parentNote, err := storage.GetNote(ctx, tx, *targetParentID)
			if err != nil {
				return err
			}
			if parentNote == nil {
				return krillerr.New(krillerr.NoteNotFound, "target parent "+*targetParentID+" not found")
			}
			if s := w.registry.Get(source.NodeType); s != nil && !s.AllowsParent(parentNote.NodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow parent type %q", source.NodeType, parentNote.NodeType))
			}
			if parentSchema := w.registry.Get(parentNote.NodeType); parentSchema != nil && !parentSchema.AllowsChild(source.NodeType) {
				return krillerr.New(krillerr.InvalidMove,
					fmt.Sprintf("schema %q does not allow child type %q", parentNote.NodeType, source.NodeType))
			}
		}

		newSiblings, err := storage.ListChildren(ctx, tx, targetParentID)
		if err != nil {
			return err
		}
		for _, sib := range newSiblings {
			if sib.Position >= position {
				if err := storage.UpdatePosition(ctx, tx, sib.ID, sib.ParentID, sib.Position+1, now()); err != nil {
					return err
				}
			}
		}

		remap := make(map[string]string)
		type queued struct {
			src      *model.Note
			newID    string
			parentID *string
			position int
		}
		rootNewID := uuid.NewString()
		remap[source.ID] = rootNewID
		queue := []queued{{src: source, newID: rootNewID, parentID: targetParentID, position: position}}

		moment := now()
		for len(queue) > 0 {
			item := queue[0]
			queue = queue[1:]

			cp := item.src.Clone()
			cp.ID = item.newID
			cp.ParentID = item.parentID
			cp.Position = item.position
			cp.CreatedAt = moment
			cp.ModifiedAt = moment
			cp.CreatedBy = w.currentUserID
			cp.ModifiedBy = w.currentUserID

			if err := storage.InsertNote(ctx, tx, cp); err != nil {
				return err
			}
			op, err := oplog.NewCreateNote(w.device, moment, oplog.CreateNotePayload{
				NoteID: cp.ID, Title: cp.Title, NodeType: cp.NodeType,
				ParentID: derefOr(cp.ParentID, ""), Position: cp.Position,
			})
			if err != nil {
				return krillerr.Wrap(krillerr.Json, "encode CreateNote operation", err)
			}
			if err := oplog.Log(ctx, tx, op); err != nil {
				return err
			}

			if item.src.ID == source.ID {
				rootCopy = cp
			}

			children, err := storage.ListChildren(ctx, tx, &item.src.ID)
			if err != nil {
				return err
			}
			for _, child := range children {
				childNewID := uuid.NewString()
				remap[child.ID] = childNewID
				queue = append(queue, queued{src: child, newID: childNewID, parentID: &cp.ID, position: child.Position})
			}
		}

		return oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, moment)
	})
	return rootCopy, err
}

// ListNotes returns every note in the workspace.
func (w *Workspace) ListNotes(ctx context.Context) ([]*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.ListAll(ctx, w.storageConn())
}

// GetNote fetches one note by id. Returns (nil, NoteNotFound) when absent.
func (w *Workspace) GetNote(ctx context.Context, id string) (*model.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := storage.GetNote(ctx, w.storageConn(), id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
	}
	return n, nil
}

// GetNoteView runs id's schema's on_view hook and returns the resulting
// HTML, or "" if no on_view hook is bound.
func (w *Workspace) GetNoteView(ctx context.Context, id string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := storage.GetNote(ctx, w.storageConn(), id)
	if err != nil {
		return "", err
	}
	if n == nil {
		return "", krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
	}
	snap, err := w.snapshot(ctx, w.storageConn())
	if err != nil {
		return "", err
	}
	return w.engine.RunOnView(n.NodeType, n, snap)
}

// ToggleNoteExpansion flips is_expanded. Not logged.
func (w *Workspace) ToggleNoteExpansion(ctx context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := storage.GetNote(ctx, w.storageConn(), id)
	if err != nil {
		return err
	}
	if n == nil {
		return krillerr.New(krillerr.NoteNotFound, "note "+id+" not found")
	}
	return storage.SetExpanded(ctx, w.storageConn(), id, !n.IsExpanded)
}

// SetSelectedNote persists the shell's currently selected note id, or
// clears it when id is nil. Not logged.
func (w *Workspace) SetSelectedNote(ctx context.Context, id *string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == nil {
		return storage.DeleteMeta(ctx, w.storageConn(), storage.MetaSelectedNoteID)
	}
	return storage.SetMeta(ctx, w.storageConn(), storage.MetaSelectedNoteID, *id)
}

// SelectedNote returns the persisted selected note id, if any.
func (w *Workspace) SelectedNote(ctx context.Context) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.GetMeta(ctx, w.storageConn(), storage.MetaSelectedNoteID)
}

// GetSetting reads a shell-chosen workspace_meta key (e.g. "ui.language"),
// returning ("", false, nil) if unset. Not logged.
func (w *Workspace) GetSetting(ctx context.Context, key string) (string, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.GetMeta(ctx, w.storageConn(), key)
}

// SetSetting writes a shell-chosen workspace_meta key. Not logged.
func (w *Workspace) SetSetting(ctx context.Context, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return storage.SetMeta(ctx, w.storageConn(), key, value)
}

// storageConn exposes the underlying *sql.DB for read-only helpers; callers
// must already hold w.mu.
func (w *Workspace) storageConn() *sql.DB { return w.storage.Conn() }
