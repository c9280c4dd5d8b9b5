package command

import (
	"context"

	"github.com/careck/krillnotes/internal/oplog"
)

// ListOperations returns operation log summaries matching filter.
func (s *Surface) ListOperations(ctx context.Context, label string, filter oplog.Filter) ([]oplog.Summary, error) {
	w, err := s.get(label)
	if err != nil {
		return nil, err
	}
	return w.ListOperations(ctx, filter)
}

// PurgeOperations deletes every operation log row, returning the count
// removed.
func (s *Surface) PurgeOperations(ctx context.Context, label string) (int64, error) {
	w, err := s.get(label)
	if err != nil {
		return 0, err
	}
	return w.PurgeAllOperations(ctx)
}
