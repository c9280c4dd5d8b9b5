package command

import (
	"context"
	"io"

	"github.com/careck/krillnotes/internal/exportimport"
)

// ExportWorkspace writes label's workspace archive to out.
func (s *Surface) ExportWorkspace(ctx context.Context, label string, out io.Writer, password string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	return w.Export(ctx, out, password)
}

// PeekImport inspects an archive without importing it, letting the caller
// ask for a password before committing to a full import. Does not require
// an open session.
func (s *Surface) PeekImport(r io.ReaderAt, size int64, password string) (exportimport.PeekResult, error) {
	return exportimport.Peek(r, size, password)
}

// ImportWorkspace creates a fresh workspace file at dbPath from an archive
// and opens it under label. Does not require a pre-existing session.
func (s *Surface) ImportWorkspace(ctx context.Context, label string, r io.ReaderAt, size int64, dbPath, password string, purgeKeep int) error {
	if err := exportimport.Import(ctx, r, size, dbPath, password); err != nil {
		return err
	}
	return s.OpenWorkspace(ctx, label, dbPath, purgeKeep)
}
