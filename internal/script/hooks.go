package script

import (
	"fmt"
	"html"

	"github.com/dop251/goja"

	"github.com/careck/krillnotes/internal/model"
)

// RunOnSave invokes schemaName's on_save hook (if bound) over note, using
// snapshot for any get_note/get_children/get_notes_of_type calls the hook
// makes. Returns note unchanged if the schema has no on_save hook.
func (e *Engine) RunOnSave(schemaName string, note *model.Note, snapshot *model.QueryContext) (*model.Note, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.registry.Get(schemaName)
	if s == nil {
		return note, nil
	}
	hook, ok := e.resolveHook(s, model.HookOnSave)
	if !ok {
		return note, nil
	}

	e.queryCtx = snapshot
	defer func() { e.queryCtx = nil }()

	result, err := e.invoke(hook, noteToMap(note))
	if err != nil {
		return nil, toScriptingErr(fmt.Sprintf("on_save for schema %q", schemaName), err)
	}
	raw, ok := result.Export().(map[string]interface{})
	if !ok {
		return note, nil
	}
	return applyScriptedNote(note, raw, s)
}

// RunOnAddChild invokes parentType's on_add_child hook over the about-to-be-
// inserted child, returning the (possibly modified) parent and child. The
// hook may return `{ parent: {...} }`, `{ child: {...} }`, both, or
// neither; unset slots come back untouched. A schema with no
// on_add_child hook leaves both untouched.
func (e *Engine) RunOnAddChild(parentType string, parent, child *model.Note, snapshot *model.QueryContext) (newParent, newChild *model.Note, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.registry.Get(parentType)
	if s == nil {
		return parent, child, nil
	}
	hook, ok := e.resolveHook(s, model.HookOnAddChild)
	if !ok {
		return parent, child, nil
	}

	e.queryCtx = snapshot
	defer func() { e.queryCtx = nil }()

	result, err := e.invoke(hook, noteToMap(parent), noteToMap(child))
	if err != nil {
		return nil, nil, toScriptingErr(fmt.Sprintf("on_add_child for schema %q", parentType), err)
	}
	raw, ok := result.Export().(map[string]interface{})
	if !ok {
		return parent, child, nil
	}

	newParent, newChild = parent, child
	if patch, ok := raw["parent"].(map[string]interface{}); ok {
		if newParent, err = applyScriptedNote(parent, patch, s); err != nil {
			return nil, nil, err
		}
	}
	if patch, ok := raw["child"].(map[string]interface{}); ok {
		childSchema := e.registry.Get(child.NodeType)
		if newChild, err = applyScriptedNote(child, patch, childSchema); err != nil {
			return nil, nil, err
		}
	}
	return newParent, newChild, nil
}

// RunOnView invokes schemaName's on_view hook and returns the HTML it
// produces. Field values passed to the hook are pre-escaped per-field;
// the string the hook returns is passed through as-is — final sanitization
// of the assembled page is the presentation layer's responsibility.
func (e *Engine) RunOnView(schemaName string, note *model.Note, snapshot *model.QueryContext) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.registry.Get(schemaName)
	if s == nil {
		return "", nil
	}
	hook, ok := e.resolveHook(s, model.HookOnView)
	if !ok {
		return "", nil
	}

	e.queryCtx = snapshot
	defer func() { e.queryCtx = nil }()

	result, err := e.invoke(hook, displayNoteMap(note))
	if err != nil {
		return "", toScriptingErr(fmt.Sprintf("on_view for schema %q", schemaName), err)
	}
	return result.String(), nil
}

// RunTreeAction invokes the tree action registered under label over note,
// returning the action buffer of queued creates/updates, and the buffered
// child reorder if the closure returned an array of note ids, for the
// workspace engine to validate and persist inside its own transaction. The
// action sees snapshot as its read-only base and starts with an empty
// buffer.
func (e *Engine) RunTreeAction(label string, note *model.Note, snapshot *model.QueryContext) (*model.ActionTxContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := e.actionByLabel(label)
	if action == nil {
		return nil, fmt.Errorf("tree action %q is not registered", label)
	}

	tx := model.NewActionTxContext(snapshot)
	e.queryCtx = snapshot
	e.actionCtx = tx
	defer func() {
		e.queryCtx = nil
		e.actionCtx = nil
	}()

	result, err := e.invoke(action.fn, noteToMap(note))
	if err != nil {
		return nil, toScriptingErr(fmt.Sprintf("tree action %q", label), err)
	}
	if ids, ok := exportReorderIDs(result); ok {
		tx.QueueReorder(ids)
	}
	return tx, nil
}

// exportReorderIDs reports whether v is a JS array of strings — the shape a
// tree action closure returns to reorder note's children — and converts it.
// Any other return shape (undefined, an object, a mixed array) is treated
// as no reorder.
func exportReorderIDs(v goja.Value) ([]string, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	raw, ok := v.Export().([]interface{})
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		ids = append(ids, s)
	}
	return ids, true
}

// invoke calls a goja.Callable with this-binding undefined, converting each
// Go argument through the runtime's normal ToValue rules.
func (e *Engine) invoke(fn goja.Callable, args ...interface{}) (goja.Value, error) {
	vals := make([]goja.Value, len(args))
	for i, a := range args {
		vals[i] = e.vm.ToValue(a)
	}
	return fn(goja.Undefined(), vals...)
}

// applyScriptedNote merges a hook's returned {title, fields} map onto a
// clone of base, coercing fields against s if s is known.
func applyScriptedNote(base *model.Note, raw map[string]interface{}, s *model.Schema) (*model.Note, error) {
	out := base.Clone()
	if title, ok := raw["title"].(string); ok {
		out.Title = title
	}
	if fieldsRaw, ok := raw["fields"].(map[string]interface{}); ok && s != nil {
		coerced, err := coerceFields(s, fieldsRaw)
		if err != nil {
			return nil, err
		}
		out.Fields = coerced
	}
	return out, nil
}

// displayNoteMap renders a Note the way on_view hooks see it: title and
// text-kind field values are HTML-escaped so script-authored templates
// cannot be broken out of by untrusted note content.
func displayNoteMap(n *model.Note) map[string]interface{} {
	m := noteToMap(n)
	if n == nil {
		return m
	}
	m["title"] = html.EscapeString(n.Title)
	fields := make(map[string]interface{}, len(n.Fields))
	for k, v := range n.Fields {
		if v.Kind == model.KindText {
			fields[k] = html.EscapeString(v.Text)
		} else {
			fields[k] = fieldValueToScript(v)
		}
	}
	m["fields"] = fields
	return m
}
