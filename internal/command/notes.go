package command

import (
	"context"

	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/workspace"
)

// ListNotes returns every note in label's workspace.
func (s *Surface) ListNotes(ctx context.Context, label string) ([]*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.ListNotes(ctx)
}

// GetNote fetches one note by id.
func (s *Surface) GetNote(ctx context.Context, label, id string) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.GetNote(ctx, id)
}

// GetNoteView runs id's on_view hook and returns the resulting HTML.
func (s *Surface) GetNoteView(ctx context.Context, label, id string) (string, error) {
	w, err := s.get(label)
	if err != nil {
		return "", err
	}
	return w.GetNoteView(ctx, id)
}

// CreateNote inserts a new note as a child or sibling of selectedID.
func (s *Surface) CreateNote(ctx context.Context, label, selectedID string, mode workspace.InsertMode, nodeType string) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.CreateNote(ctx, selectedID, mode, nodeType)
}

// CreateNoteRoot inserts a new root-level note.
func (s *Surface) CreateNoteRoot(ctx context.Context, label, nodeType string) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.CreateNoteRoot(ctx, nodeType)
}

// UpdateNote overwrites title/fields for id, running on_save and
// enforcing required fields.
func (s *Surface) UpdateNote(ctx context.Context, label, id, title string, fields model.FieldMap) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.UpdateNote(ctx, id, title, fields)
}

// MoveNote relocates id to newParentID/newPosition.
func (s *Surface) MoveNote(ctx context.Context, label, id string, newParentID *string, newPosition int) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.MoveNote(ctx, id, newParentID, newPosition)
}

// DeleteNote removes id per strategy.
func (s *Surface) DeleteNote(ctx context.Context, label, id string, strategy workspace.DeleteStrategy) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.DeleteNote(ctx, id, strategy)
}

// DeepCopyNote clones sourceID's subtree under targetParentID at position.
func (s *Surface) DeepCopyNote(ctx context.Context, label, sourceID string, targetParentID *string, position int) (*model.Note, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.DeepCopyNote(ctx, sourceID, targetParentID, position)
}

// ToggleNoteExpansion flips id's is_expanded flag.
func (s *Surface) ToggleNoteExpansion(ctx context.Context, label, id string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.ToggleNoteExpansion(ctx, id)
}

// SetSelectedNote persists the shell's currently selected note id.
func (s *Surface) SetSelectedNote(ctx context.Context, label string, id *string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.SetSelectedNote(ctx, id)
}

// SelectedNote returns the persisted selected note id, if any.
func (s *Surface) SelectedNote(ctx context.Context, label string) (string, bool, error) {
	w, err := s.get(label)
	if err != nil {
		return "", false, err
	}
	return w.SelectedNote(ctx)
}

// RunTreeAction invokes the tree action labeled actionLabel over noteID.
func (s *Surface) RunTreeAction(ctx context.Context, label, noteID, actionLabel string) (*workspace.TreeActionResult, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.RunTreeAction(ctx, noteID, actionLabel)
}
