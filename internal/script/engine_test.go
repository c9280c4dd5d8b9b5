package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/schema"
)

func newTestEngine(t *testing.T, source string) (*Engine, *schema.Registry) {
	t.Helper()
	reg := schema.New()
	e := NewEngine(reg)
	errs := e.LoadScript("script-1", "test-script", source)
	require.Empty(t, errs)
	return e, reg
}

func TestSchemaRegistration(t *testing.T) {
	_, reg := newTestEngine(t, `
schema("task", {
  fields: [
    { name: "done", type: "boolean", required: true },
    { name: "priority", type: "number" }
  ],
  title_can_edit: true
});
`)
	s := reg.Get("task")
	require.NotNil(t, s)
	assert.Len(t, s.Fields, 2)
	assert.True(t, s.TitleCanEdit)

	done, ok := s.FieldByName("done")
	require.True(t, ok)
	assert.Equal(t, model.FieldBoolean, done.Type)
	assert.True(t, done.Required)
}

func TestDuplicateSchemaNameCollectsScriptError(t *testing.T) {
	reg := schema.New()
	e := NewEngine(reg)
	require.Empty(t, e.LoadScript("s1", "first", `schema("task", { fields: [] });`))
	errs := e.LoadScript("s2", "second", `schema("task", { fields: [] });`)
	require.Len(t, errs, 1)
	assert.Equal(t, "second", errs[0].ScriptName)
}

func TestRunOnSaveAppliesReturnedFields(t *testing.T) {
	e, reg := newTestEngine(t, `
schema("task", {
  fields: [ { name: "done", type: "boolean" } ],
  on_save: function(note) {
    note.fields.done = true;
    return note;
  }
});
`)
	s := reg.Get("task")
	require.NotNil(t, s)

	note := &model.Note{ID: "n1", NodeType: "task", Fields: model.FieldMap{"done": model.BoolValue(false)}}
	qc := model.NewQueryContext(nil)

	out, err := e.RunOnSave("task", note, qc)
	require.NoError(t, err)
	assert.True(t, out.Fields["done"].Bool)
}

func TestRunOnViewEscapesFieldsAndReturnsHookOutput(t *testing.T) {
	e, _ := newTestEngine(t, `
schema("task", {
  fields: [ { name: "summary", type: "text" } ],
  on_view: function(note) {
    return "<b>" + note.title + "</b>: " + note.fields.summary;
  }
});
`)
	note := &model.Note{ID: "n1", NodeType: "task", Title: "Ship it", Fields: model.FieldMap{
		"summary": model.TextValue("<script>alert(1)</script>"),
	}}
	qc := model.NewQueryContext([]*model.Note{note})

	html, err := e.RunOnView("task", note, qc)
	require.NoError(t, err)
	assert.Contains(t, html, "<b>Ship it</b>")
	assert.NotContains(t, html, "<script>alert")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRunOnAddChildPatchesBothSides(t *testing.T) {
	e, _ := newTestEngine(t, `
schema("project", {
  fields: [ { name: "childCount", type: "number" } ],
  on_add_child: function(parent, child) {
    return {
      parent: { fields: { childCount: parent.fields.childCount + 1 } },
      child: { title: "auto: " + child.nodeType }
    };
  }
});
schema("task", { fields: [] });
`)
	parent := &model.Note{ID: "p1", NodeType: "project", Fields: model.FieldMap{"childCount": model.NumberValue(2)}}
	child := &model.Note{ID: "c1", NodeType: "task", Title: "untitled"}
	qc := model.NewQueryContext([]*model.Note{parent, child})

	newParent, newChild, err := e.RunOnAddChild("project", parent, child, qc)
	require.NoError(t, err)
	assert.Equal(t, float64(3), newParent.Fields["childCount"].Num)
	assert.Equal(t, "auto: task", newChild.Title)
}

func TestRunOnViewDisplayHelpersComposeEscapedHTML(t *testing.T) {
	// note.title/fields reach on_view already HTML-escaped (displayNoteMap),
	// so this test escapes untrusted content only through literal arguments
	// to the helpers themselves, to check each helper's own escaping in
	// isolation from that pre-escaping step.
	e, _ := newTestEngine(t, `
schema("task", {
  fields: [ { name: "notes", type: "text" } ],
  on_view: function(note) {
    return stack(
      heading("Task: " + note.nodeType),
      section("Details",
        columns(
          field("Status", "<b>done</b>"),
          badge(note.nodeType)
        ),
        divider(),
        text(note.fields.notes),
        list(["a", "<b>x</b>", "c"])
      )
    );
  }
});
`)
	note := &model.Note{ID: "n1", NodeType: "task", Title: "Ship it", Fields: model.FieldMap{
		"notes": model.TextValue("plain notes"),
	}}
	qc := model.NewQueryContext([]*model.Note{note})

	out, err := e.RunOnView("task", note, qc)
	require.NoError(t, err)
	assert.Contains(t, out, `class="kn-stack"`)
	assert.Contains(t, out, `class="kn-columns"`)
	assert.Contains(t, out, "<section><h3>Details</h3>")
	assert.Contains(t, out, "<hr>")
	assert.Contains(t, out, `class="kn-badge"`)
	assert.Contains(t, out, "<h2>Task: task</h2>")
	assert.Contains(t, out, "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, out, "&lt;b&gt;done&lt;/b&gt;")
	assert.Contains(t, out, "plain notes")
}

func TestDisplayHelperFieldsAndTable(t *testing.T) {
	assert.Equal(t, `<div class="kn-field"><span class="kn-field-label">Name</span><span class="kn-field-value">Ann</span></div>`,
		field("Name", "Ann"))

	out := displayFields(map[string]interface{}{"b": 2, "a": 1})
	assert.True(t, strings.Index(out, ">a<") < strings.Index(out, ">b<"))

	rows := []interface{}{
		[]interface{}{"1", "<i>x</i>"},
	}
	out = table([]string{"ID", "Label"}, rows)
	assert.Contains(t, out, "<th>ID</th>")
	assert.Contains(t, out, "&lt;i&gt;x&lt;/i&gt;")
}

func TestRunTreeActionBuffersCreateAndUpdate(t *testing.T) {
	e, reg := newTestEngine(t, `
schema("project", { fields: [] });
schema("task", { fields: [ { name: "done", type: "boolean" } ] });

add_tree_action("Add subtask", ["project"], function(note) {
  var child = create_note(note.id, "task");
  update_note({ id: note.id, title: "touched" });
});
`)
	require.NotNil(t, reg.Get("project"))
	require.NotNil(t, reg.Get("task"))

	parent := &model.Note{ID: "p1", NodeType: "project", Title: "Launch"}
	qc := model.NewQueryContext([]*model.Note{parent})

	tx, err := e.RunTreeAction("Add subtask", parent, qc)
	require.NoError(t, err)
	require.Len(t, tx.Creates(), 1)
	assert.Equal(t, "task", tx.Creates()[0].Note.NodeType)
	require.Contains(t, tx.Updates(), "p1")
	assert.Equal(t, "touched", tx.Updates()["p1"].Note.Title)
}

func TestRunTreeActionReturnsChildReorder(t *testing.T) {
	e, reg := newTestEngine(t, `
schema("project", { fields: [] });
schema("task", { fields: [] });

add_tree_action("Flip children", ["project"], function(note) {
  var children = get_children(note.id);
  var ids = [];
  for (var i = children.length - 1; i >= 0; i--) {
    ids.push(children[i].id);
  }
  return ids;
});
`)
	require.NotNil(t, reg.Get("project"))

	parent := &model.Note{ID: "p1", NodeType: "project"}
	c1 := &model.Note{ID: "c1", NodeType: "task", ParentID: &parent.ID, Position: 0}
	c2 := &model.Note{ID: "c2", NodeType: "task", ParentID: &parent.ID, Position: 1}
	qc := model.NewQueryContext([]*model.Note{parent, c1, c2})

	tx, err := e.RunTreeAction("Flip children", parent, qc)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, tx.Reorder())
}

func TestRunTreeActionWithNoReturnLeavesReorderNil(t *testing.T) {
	e, reg := newTestEngine(t, `
schema("project", { fields: [] });
add_tree_action("No-op", ["project"], function(note) {});
`)
	require.NotNil(t, reg.Get("project"))

	parent := &model.Note{ID: "p1", NodeType: "project"}
	qc := model.NewQueryContext([]*model.Note{parent})

	tx, err := e.RunTreeAction("No-op", parent, qc)
	require.NoError(t, err)
	assert.Nil(t, tx.Reorder())
}

func TestActionsForFiltersByApplicableType(t *testing.T) {
	e, _ := newTestEngine(t, `
schema("project", { fields: [] });
add_tree_action("Archive", ["project"], function(note) {});
`)
	actions := e.ActionsFor("project")
	require.Len(t, actions, 1)
	assert.Equal(t, "Archive", actions[0].Label)
	assert.Empty(t, e.ActionsFor("task"))
}

func TestReloadClearsPreviousRegistrations(t *testing.T) {
	reg := schema.New()
	e := NewEngine(reg)
	e.Reload([]*model.UserScript{
		{ID: "s1", Name: "one", SourceCode: `schema("task", { fields: [] });`, Enabled: true, LoadOrder: 0},
	})
	require.NotNil(t, reg.Get("task"))

	errs := e.Reload([]*model.UserScript{
		{ID: "s2", Name: "two", SourceCode: `schema("note", { fields: [] });`, Enabled: true, LoadOrder: 0},
	})
	require.Empty(t, errs)
	assert.Nil(t, reg.Get("task"))
	assert.NotNil(t, reg.Get("note"))
}

func TestReloadSkipsDisabledScripts(t *testing.T) {
	reg := schema.New()
	e := NewEngine(reg)
	e.Reload([]*model.UserScript{
		{ID: "s1", Name: "one", SourceCode: `schema("task", { fields: [] });`, Enabled: false},
	})
	assert.Nil(t, reg.Get("task"))
}
