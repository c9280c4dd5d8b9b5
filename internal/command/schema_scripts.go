package command

import (
	"context"

	"github.com/careck/krillnotes/internal/model"
)

// GetAllSchemas returns every currently registered schema.
func (s *Surface) GetAllSchemas(ctx context.Context, label string) ([]*model.Schema, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.GetAllSchemas(ctx), nil
}

// GetSchemaFields returns one schema's field definitions.
func (s *Surface) GetSchemaFields(ctx context.Context, label, name string) ([]model.FieldDefinition, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.GetSchemaFields(ctx, name)
}

// GetNodeTypes returns every registered schema name.
func (s *Surface) GetNodeTypes(ctx context.Context, label string) ([]string, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.GetNodeTypes(ctx), nil
}

// ActionsForType returns the tree action labels applicable to nodeType.
func (s *Surface) ActionsForType(ctx context.Context, label, nodeType string) ([]string, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.ActionsForType(nodeType), nil
}

// CreateUserScript adds a new script, appended at the end of load order.
func (s *Surface) CreateUserScript(ctx context.Context, label, name, sourceCode string) (*model.UserScript, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.CreateUserScript(ctx, name, sourceCode)
}

// UpdateUserScript overwrites an existing script's mutable fields.
func (s *Surface) UpdateUserScript(ctx context.Context, label, id, name, sourceCode string, enabled bool) (*model.UserScript, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.UpdateUserScript(ctx, id, name, sourceCode, enabled)
}

// DeleteUserScript removes a script by id.
func (s *Surface) DeleteUserScript(ctx context.Context, label, id string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.DeleteUserScript(ctx, id)
}

// ReorderAllUserScripts rewrites load_order to match ids' order.
func (s *Surface) ReorderAllUserScripts(ctx context.Context, label string, ids []string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.ReorderAllUserScripts(ctx, ids)
}

// ListUserScripts returns every script ordered by load_order.
func (s *Surface) ListUserScripts(ctx context.Context, label string) ([]*model.UserScript, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.ListUserScripts(ctx)
}
