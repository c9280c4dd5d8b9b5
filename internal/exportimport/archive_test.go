package exportimport

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careck/krillnotes/internal/device"
	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/storage"
)

func seedWorkspace(t *testing.T) *storage.Storage {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.db")
	st, err := storage.Create(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	deviceID, err := device.Derive()
	require.NoError(t, err)
	require.NoError(t, storage.SetMeta(ctx, st.Conn(), storage.MetaDeviceID, deviceID))

	root := &model.Note{
		ID: uuid.NewString(), Title: "Root", NodeType: "Folder",
		Position: 0, CreatedAt: 1, ModifiedAt: 1, Fields: model.FieldMap{},
	}
	require.NoError(t, storage.InsertNote(ctx, st.Conn(), root))

	child := &model.Note{
		ID: uuid.NewString(), Title: "Child", NodeType: "TextNote",
		ParentID: &root.ID, Position: 0, CreatedAt: 1, ModifiedAt: 1, Fields: model.FieldMap{},
	}
	require.NoError(t, storage.InsertNote(ctx, st.Conn(), child))

	script := &model.UserScript{
		ID: uuid.NewString(), Name: "My Schemas!", SourceCode: `schema("Folder", { fields: [] });`,
		LoadOrder: 1, Enabled: true, CreatedAt: 1, ModifiedAt: 1,
	}
	require.NoError(t, storage.InsertUserScript(ctx, st.Conn(), script))

	return st
}

func TestExportImportRoundTripNoPassword(t *testing.T) {
	ctx := context.Background()
	st := seedWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, st.Conn(), &buf, ""))

	data := buf.Bytes()
	peek, err := Peek(bytes.NewReader(data), int64(len(data)), "")
	require.NoError(t, err)
	assert.Equal(t, 2, peek.NoteCount)
	assert.Equal(t, 1, peek.ScriptCount)

	destPath := filepath.Join(t.TempDir(), "imported.db")
	require.NoError(t, Import(ctx, bytes.NewReader(data), int64(len(data)), destPath, ""))

	dest, err := storage.Open(ctx, destPath)
	require.NoError(t, err)
	defer dest.Close()

	notes, err := storage.ListAll(ctx, dest.Conn())
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	scripts, err := storage.ListUserScripts(ctx, dest.Conn())
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, 1, scripts[0].LoadOrder)
	assert.True(t, scripts[0].Enabled)
	assert.Contains(t, scripts[0].SourceCode, `schema("Folder"`)
}

func TestPeekEncryptedArchiveRequiresPassword(t *testing.T) {
	ctx := context.Background()
	st := seedWorkspace(t)

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, st.Conn(), &buf, "hunter2"))
	data := buf.Bytes()

	_, err := Peek(bytes.NewReader(data), int64(len(data)), "")
	require.Error(t, err)
	sub, ok := krillerr.SubKindOf(err)
	require.True(t, ok)
	assert.Equal(t, krillerr.ExportEncryptedArchive, sub)

	_, err = Peek(bytes.NewReader(data), int64(len(data)), "wrong-password")
	require.Error(t, err)
	sub, ok = krillerr.SubKindOf(err)
	require.True(t, ok)
	assert.Equal(t, krillerr.ExportInvalidPassword, sub)

	peek, err := Peek(bytes.NewReader(data), int64(len(data)), "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 2, peek.NoteCount)
}

func TestImportEncryptedArchivePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	st := seedWorkspace(t)

	notesBefore, err := storage.ListAll(ctx, st.Conn())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, st.Conn(), &buf, "s3cret"))
	data := buf.Bytes()

	destPath := filepath.Join(t.TempDir(), "imported.db")
	require.NoError(t, Import(ctx, bytes.NewReader(data), int64(len(data)), destPath, "s3cret"))

	dest, err := storage.Open(ctx, destPath)
	require.NoError(t, err)
	defer dest.Close()

	notesAfter, err := storage.ListAll(ctx, dest.Conn())
	require.NoError(t, err)
	require.Len(t, notesAfter, len(notesBefore))

	byID := make(map[string]*model.Note)
	for _, n := range notesAfter {
		byID[n.ID] = n
	}
	for _, want := range notesBefore {
		got, ok := byID[want.ID]
		require.True(t, ok, "note %s missing after import", want.ID)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.NodeType, got.NodeType)
		assert.Equal(t, want.Position, got.Position)
		if want.ParentID == nil {
			assert.Nil(t, got.ParentID)
		} else {
			require.NotNil(t, got.ParentID)
			assert.Equal(t, *want.ParentID, *got.ParentID)
		}
	}
}

func TestSlugifyDisambiguatesDuplicates(t *testing.T) {
	slugs := uniqueSlugs([]string{"My Schemas!", "my---schemas", "###", "###"})
	assert.Equal(t, []string{"my-schemas", "my-schemas-2", "script", "script-2"}, slugs)
}
