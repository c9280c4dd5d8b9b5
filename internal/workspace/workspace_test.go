package workspace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/oplog"
)

const testSchemas = `
schema("project", {
  fields: [ { name: "childCount", type: "number" } ]
});
schema("task", {
  fields: [
    { name: "done", type: "boolean" },
    { name: "notes", type: "text", required: true }
  ]
});
`

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ws.db")

	w, err := Create(ctx, path, oplog.LocalOnly{KeepLast: 1000})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	_, err = w.CreateUserScript(ctx, "schemas", testSchemas)
	require.NoError(t, err)
	require.Empty(t, w.ScriptErrors())

	return w
}

func TestCreateNoteRootAndChildPositions(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)

	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)
	assert.Nil(t, root.ParentID)
	assert.Equal(t, 0, root.Position)

	child1, err := w.CreateNote(ctx, root.ID, AsChild, "task")
	require.NoError(t, err)
	require.NotNil(t, child1.ParentID)
	assert.Equal(t, root.ID, *child1.ParentID)
	assert.Equal(t, 0, child1.Position)

	child2, err := w.CreateNote(ctx, root.ID, AsChild, "task")
	require.NoError(t, err)
	assert.Equal(t, 1, child2.Position)

	sibling, err := w.CreateNote(ctx, child1.ID, AsSibling, "task")
	require.NoError(t, err)
	assert.Equal(t, 1, sibling.Position)

	shifted, err := w.GetNote(ctx, child2.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, shifted.Position)
}

func TestCreateNoteUnknownSchema(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)

	_, err = w.CreateNote(ctx, root.ID, AsChild, "nope")
	require.Error(t, err)
	kind, ok := krillerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, krillerr.SchemaNotFound, kind)
}

func TestUpdateNoteEnforcesRequiredField(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)
	task, err := w.CreateNote(ctx, root.ID, AsChild, "task")
	require.NoError(t, err)

	_, err = w.UpdateNote(ctx, task.ID, "My task", model.FieldMap{"notes": model.TextValue("")})
	require.Error(t, err)

	updated, err := w.UpdateNote(ctx, task.ID, "My task", model.FieldMap{
		"notes": model.TextValue("buy milk"),
		"done":  model.BoolValue(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "My task", updated.Title)
	assert.True(t, updated.Fields["done"].Bool)

	ops, err := w.ListOperations(ctx, oplog.Filter{Type: oplog.TypeUpdateField})
	require.NoError(t, err)
	require.Len(t, ops, 1)
}

func TestMoveNoteRejectsCycleAndSelfParent(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)
	child, err := w.CreateNote(ctx, root.ID, AsChild, "task")
	require.NoError(t, err)

	_, err = w.MoveNote(ctx, root.ID, &child.ID, 0)
	require.Error(t, err)
	kind, _ := krillerr.KindOf(err)
	assert.Equal(t, krillerr.InvalidMove, kind)

	_, err = w.MoveNote(ctx, child.ID, &child.ID, 0)
	require.Error(t, err)
}

func TestDeleteNotePromoteChildrenAppendsAtTail(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)

	firstChild, err := w.CreateNote(ctx, root.ID, AsChild, "project")
	require.NoError(t, err)
	victim, err := w.CreateNote(ctx, root.ID, AsChild, "project")
	require.NoError(t, err)
	grandchild1, err := w.CreateNote(ctx, victim.ID, AsChild, "task")
	require.NoError(t, err)
	grandchild2, err := w.CreateNote(ctx, grandchild1.ID, AsSibling, "task")
	require.NoError(t, err)

	require.NoError(t, w.DeleteNote(ctx, victim.ID, PromoteChildren))

	g1, err := w.GetNote(ctx, grandchild1.ID)
	require.NoError(t, err)
	g2, err := w.GetNote(ctx, grandchild2.ID)
	require.NoError(t, err)
	require.NotNil(t, g1.ParentID)
	assert.Equal(t, root.ID, *g1.ParentID)
	assert.Equal(t, root.ID, *g2.ParentID)
	assert.Less(t, g1.Position, g2.Position)

	kept, err := w.GetNote(ctx, firstChild.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, kept.Position)

	_, err = w.GetNote(ctx, victim.ID)
	require.Error(t, err)
}

func TestDeleteNoteAllRemovesSubtree(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)
	child, err := w.CreateNote(ctx, root.ID, AsChild, "task")
	require.NoError(t, err)

	require.NoError(t, w.DeleteNote(ctx, root.ID, DeleteAll))

	_, err = w.GetNote(ctx, root.ID)
	require.Error(t, err)
	_, err = w.GetNote(ctx, child.ID)
	require.Error(t, err)
}

func TestDeepCopyNotePreservesSubtreeShape(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)
	source, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)
	child, err := w.CreateNote(ctx, source.ID, AsChild, "task")
	require.NoError(t, err)
	_, err = w.UpdateNote(ctx, child.ID, "original", model.FieldMap{"notes": model.TextValue("x")})
	require.NoError(t, err)

	dest, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)

	copyRoot, err := w.DeepCopyNote(ctx, source.ID, &dest.ID, 0)
	require.NoError(t, err)
	assert.NotEqual(t, source.ID, copyRoot.ID)
	assert.Equal(t, dest.ID, *copyRoot.ParentID)

	children, err := w.ListNotes(ctx)
	require.NoError(t, err)
	var copiedChild *model.Note
	for _, n := range children {
		if n.ParentID != nil && *n.ParentID == copyRoot.ID {
			copiedChild = n
		}
	}
	require.NotNil(t, copiedChild)
	assert.Equal(t, "original", copiedChild.Title)
	assert.NotEqual(t, child.ID, copiedChild.ID)
}

func TestReorderAllUserScriptsReloadsRegistry(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)

	scripts, err := w.ListUserScripts(ctx)
	require.NoError(t, err)
	require.Len(t, scripts, 1)

	second, err := w.CreateUserScript(ctx, "extra", `schema("note", { fields: [] });`)
	require.NoError(t, err)

	require.NoError(t, w.ReorderAllUserScripts(ctx, []string{second.ID, scripts[0].ID}))

	reordered, err := w.ListUserScripts(ctx)
	require.NoError(t, err)
	byID := map[string]int{}
	for _, s := range reordered {
		byID[s.ID] = s.LoadOrder
	}
	assert.Equal(t, 1, byID[second.ID])
	assert.Equal(t, 2, byID[scripts[0].ID])

	types := w.GetNodeTypes(ctx)
	assert.Contains(t, types, "note")
	assert.Contains(t, types, "project")
}

func TestRunTreeActionBuffersApplyInOneTransaction(t *testing.T) {
	ctx := context.Background()
	w := newTestWorkspace(t)

	_, err := w.CreateUserScript(ctx, "actions", `
add_tree_action("Add default task", ["project"], function(note) {
  create_note(note.id, "task");
  update_note({ id: note.id, fields: { childCount: 1 } });
});
`)
	require.NoError(t, err)

	root, err := w.CreateNoteRoot(ctx, "project")
	require.NoError(t, err)

	result, err := w.RunTreeAction(ctx, root.ID, "Add default task")
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "task", result.Created[0].NodeType)
	require.Len(t, result.Updated, 1)
	assert.Equal(t, float64(1), result.Updated[0].Fields["childCount"].Num)

	labels := w.ActionsForType("project")
	assert.Contains(t, labels, "Add default task")
}
