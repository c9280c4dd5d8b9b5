package workspace

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/oplog"
	"github.com/careck/krillnotes/internal/schema"
	"github.com/careck/krillnotes/internal/storage"
)

// TreeActionResult summarizes the notes a tree action created or updated,
// for the command surface to report back to the shell.
type TreeActionResult struct {
	Created   []*model.Note
	Updated   []*model.Note
	Reordered []string // note ids actually repositioned by a returned child-ordering
}

// RunTreeAction invokes the user-registered tree action labeled label over
// noteID, applying its buffered creates and updates inside one transaction
// and logging one CreateNote/UpdateField operation per applied effect. If
// the closure returned a child ordering, each repositioned child is
// persisted and logged as a MoveNote operation within noteID.
func (w *Workspace) RunTreeAction(ctx context.Context, noteID, label string) (*TreeActionResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := &TreeActionResult{}
	err := w.withTx(ctx, func(tx *sql.Tx) error {
		note, err := storage.GetNote(ctx, tx, noteID)
		if err != nil {
			return err
		}
		if note == nil {
			return krillerr.New(krillerr.NoteNotFound, "note "+noteID+" not found")
		}

		snap, err := w.snapshot(ctx, tx)
		if err != nil {
			return err
		}
		buffer, err := w.engine.RunTreeAction(label, note, snap)
		if err != nil {
			return err
		}

		for _, c := range buffer.Creates() {
			n := c.Note
			s := w.registry.Get(n.NodeType)
			if s == nil {
				return krillerr.New(krillerr.SchemaNotFound, fmt.Sprintf("unknown node type %q", n.NodeType))
			}
			moment := now()
			n.CreatedBy = w.currentUserID
			n.ModifiedBy = w.currentUserID
			n.CreatedAt = moment
			n.ModifiedAt = moment
			if err := storage.InsertNote(ctx, tx, n); err != nil {
				return err
			}
			op, err := oplog.NewCreateNote(w.device, moment, oplog.CreateNotePayload{
				NoteID: n.ID, Title: n.Title, NodeType: n.NodeType,
				ParentID: derefOr(n.ParentID, ""), Position: n.Position,
			})
			if err != nil {
				return krillerr.Wrap(krillerr.Json, "encode CreateNote operation", err)
			}
			if err := oplog.Log(ctx, tx, op); err != nil {
				return err
			}
			result.Created = append(result.Created, n)
		}

		for id, u := range buffer.Updates() {
			before, err := storage.GetNote(ctx, tx, id)
			if err != nil {
				return err
			}
			if before == nil {
				continue
			}
			n := u.Note
			s := w.registry.Get(n.NodeType)
			if s == nil {
				return krillerr.New(krillerr.SchemaNotFound, fmt.Sprintf("unknown node type %q", n.NodeType))
			}
			if err := schema.ValidateRequired(s, n.Fields); err != nil {
				return err
			}
			n.ModifiedBy = w.currentUserID
			n.ModifiedAt = now()
			if err := storage.UpdateNoteRow(ctx, tx, n); err != nil {
				return err
			}
			changed := changedFieldNames(before, n)
			if len(changed) > 0 {
				op, err := oplog.NewUpdateField(w.device, n.ModifiedAt, oplog.UpdateFieldPayload{
					NoteID: n.ID, ChangedFields: changed,
				})
				if err != nil {
					return krillerr.Wrap(krillerr.Json, "encode UpdateField operation", err)
				}
				if err := oplog.Log(ctx, tx, op); err != nil {
					return err
				}
			}
			result.Updated = append(result.Updated, n)
		}

		if order := buffer.Reorder(); len(order) > 0 {
			children, err := storage.ListChildren(ctx, tx, &note.ID)
			if err != nil {
				return err
			}
			byID := make(map[string]*model.Note, len(children))
			for _, c := range children {
				byID[c.ID] = c
			}
			moment := now()
			for pos, childID := range order {
				child, ok := byID[childID]
				if !ok || child.Position == pos {
					continue
				}
				if err := storage.UpdatePosition(ctx, tx, childID, &note.ID, pos, moment); err != nil {
					return err
				}
				op, err := oplog.NewMoveNote(w.device, moment, oplog.MoveNotePayload{
					NoteID: childID, OldParentID: note.ID, NewParentID: note.ID, NewPosition: pos,
				})
				if err != nil {
					return krillerr.Wrap(krillerr.Json, "encode MoveNote operation", err)
				}
				if err := oplog.Log(ctx, tx, op); err != nil {
					return err
				}
				result.Reordered = append(result.Reordered, childID)
			}
		}

		return oplog.PurgeIfNeeded(ctx, tx, w.purgePolicy, now())
	})
	return result, err
}

// ActionsForType exposes the tree actions applicable to nodeType, for the
// command surface's introspection calls.
func (w *Workspace) ActionsForType(nodeType string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	labels := make([]string, 0)
	for _, a := range w.engine.ActionsFor(nodeType) {
		labels = append(labels, a.Label)
	}
	return labels
}
