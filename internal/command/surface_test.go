package command

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careck/krillnotes/internal/workspace"
)

func TestCreateOpenCloseLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := filepath.Join(t.TempDir(), "ws.db")

	require.NoError(t, s.CreateWorkspace(ctx, "win1", path, 1000))

	info, err := s.GetWorkspaceInfo("win1")
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)

	_, err = s.ListNotes(ctx, "unknown-label")
	require.Error(t, err)

	require.NoError(t, s.CloseWorkspace("win1"))

	_, err = s.GetWorkspaceInfo("win1")
	require.Error(t, err)

	require.NoError(t, s.OpenWorkspace(ctx, "win2", path, 1000))
	defer s.CloseWorkspace("win2")

	notes, err := s.ListNotes(ctx, "win2")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestCreateNoteAndSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := filepath.Join(t.TempDir(), "ws.db")
	require.NoError(t, s.CreateWorkspace(ctx, "w", path, 1000))
	defer s.CloseWorkspace("w")

	_, err := s.CreateUserScript(ctx, "w", "schemas", `schema("Note", { fields: [] });`)
	require.NoError(t, err)

	root, err := s.CreateNoteRoot(ctx, "w", "Note")
	require.NoError(t, err)
	assert.Equal(t, "Note", root.NodeType)

	child, err := s.CreateNote(ctx, "w", root.ID, workspace.AsChild, "Note")
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)

	_, ok, err := s.GetSetting(ctx, "w", "ui.language")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "w", "ui.language", "en"))
	val, ok, err := s.GetSetting(ctx, "w", "ui.language")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", val)
}

func TestExportPeekImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	srcPath := filepath.Join(t.TempDir(), "src.db")
	require.NoError(t, s.CreateWorkspace(ctx, "src", srcPath, 1000))
	defer s.CloseWorkspace("src")

	_, err := s.CreateUserScript(ctx, "src", "schemas", `schema("Note", { fields: [] });`)
	require.NoError(t, err)
	root, err := s.CreateNoteRoot(ctx, "src", "Note")
	require.NoError(t, err)
	_, err = s.CreateNote(ctx, "src", root.ID, workspace.AsChild, "Note")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.ExportWorkspace(ctx, "src", &buf, "pw123"))
	data := buf.Bytes()

	_, err = s.PeekImport(bytes.NewReader(data), int64(len(data)), "")
	require.Error(t, err)
	assert.Equal(t, "ENCRYPTED_ARCHIVE", Sentinel(err))

	_, err = s.PeekImport(bytes.NewReader(data), int64(len(data)), "wrong")
	require.Error(t, err)
	assert.Equal(t, "INVALID_PASSWORD", Sentinel(err))

	peek, err := s.PeekImport(bytes.NewReader(data), int64(len(data)), "pw123")
	require.NoError(t, err)
	assert.Equal(t, 2, peek.NoteCount)
	assert.Equal(t, 1, peek.ScriptCount)

	destPath := filepath.Join(t.TempDir(), "dest.db")
	require.NoError(t, s.ImportWorkspace(ctx, "dest", bytes.NewReader(data), int64(len(data)), destPath, "pw123", 1000))
	defer s.CloseWorkspace("dest")

	notes, err := s.ListNotes(ctx, "dest")
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	var titles []string
	for _, n := range notes {
		titles = append(titles, n.NodeType)
	}
	assert.Contains(t, titles, "Note")
}
