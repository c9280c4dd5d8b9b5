package workspace

import (
	"context"

	"github.com/careck/krillnotes/internal/oplog"
)

// ListOperations returns operation log summaries matching filter, newest
// first.
func (w *Workspace) ListOperations(ctx context.Context, filter oplog.Filter) ([]oplog.Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return oplog.List(ctx, w.storageConn(), filter)
}

// PurgeAllOperations deletes every operation log row, returning the count
// removed.
func (w *Workspace) PurgeAllOperations(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return oplog.PurgeAll(ctx, w.storageConn())
}
