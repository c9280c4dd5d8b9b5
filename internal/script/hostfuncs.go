package script

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/schema"
)

// bindHostFunctions registers every global a script body or hook closure
// may call, directly on e.vm. Called once per resetRuntime so a Reload
// starts from a clean slate.
func (e *Engine) bindHostFunctions() {
	vm := e.vm
	vm.Set("schema", e.hostSchema)
	vm.Set("add_tree_action", e.hostAddTreeAction)
	vm.Set("get_note", e.hostGetNote)
	vm.Set("get_children", e.hostGetChildren)
	vm.Set("get_notes_of_type", e.hostGetNotesOfType)
	vm.Set("create_note", e.hostCreateNote)
	vm.Set("update_note", e.hostUpdateNote)
	vm.Set("escape_html", escapeHTML)
	vm.Set("format_date", formatDate)

	vm.Set("heading", heading)
	vm.Set("text", displayText)
	vm.Set("badge", badge)
	vm.Set("divider", divider)
	vm.Set("field", field)
	vm.Set("fields", displayFields)
	vm.Set("list", displayList)
	vm.Set("table", table)
	vm.Set("stack", e.hostStack)
	vm.Set("columns", e.hostColumns)
	vm.Set("section", e.hostSection)
}

// hostSchema implements the top-level schema(name, definition) call. It is
// bound with the raw goja.FunctionCall signature (not reflection-wrapped)
// because the "on_save"/"on_view"/"on_add_child" properties must be
// captured as live Callables, not invoked or exported eagerly.
func (e *Engine) hostSchema(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 2 {
		panic(e.vm.NewTypeError("schema(name, definition) requires two arguments"))
	}
	name := call.Argument(0).String()
	defObj := call.Argument(1).ToObject(e.vm)
	if defObj == nil {
		panic(e.vm.NewTypeError("schema(): second argument must be an object"))
	}

	s := &model.Schema{
		Name:     name,
		HookRefs: make(map[model.HookName]int),
	}

	if v := defObj.Get("fields"); v != nil && !goja.IsUndefined(v) {
		if raw, ok := v.Export().([]interface{}); ok {
			for _, item := range raw {
				if fm, ok := item.(map[string]interface{}); ok {
					s.Fields = append(s.Fields, parseFieldDefinition(fm))
				}
			}
		}
	}

	s.TitleCanView = boolProp(defObj, "title_can_view", true)
	s.TitleCanEdit = boolProp(defObj, "title_can_edit", true)

	switch strProp(defObj, "children_sort", string(model.SortNone)) {
	case string(model.SortAsc):
		s.ChildrenSort = model.SortAsc
	case string(model.SortDesc):
		s.ChildrenSort = model.SortDesc
	default:
		s.ChildrenSort = model.SortNone
	}

	s.AllowedParentTypes = stringSetProp(defObj, "allowed_parent_types")
	s.AllowedChildrenTypes = stringSetProp(defObj, "allowed_children_types")

	for _, hookName := range []model.HookName{model.HookOnSave, model.HookOnView, model.HookOnAddChild} {
		v := defObj.Get(string(hookName))
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			continue
		}
		idx := len(e.hookSlots)
		e.hookSlots = append(e.hookSlots, fn)
		s.HookRefs[hookName] = idx
	}

	if scriptErr := e.registry.Register(e.currentScript, s); scriptErr != nil {
		e.loadErrors = append(e.loadErrors, *scriptErr)
	}
	return goja.Undefined()
}

// hostAddTreeAction implements add_tree_action(label, applicableTypes, fn).
func (e *Engine) hostAddTreeAction(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 3 {
		panic(e.vm.NewTypeError("add_tree_action(label, types, fn) requires three arguments"))
	}
	label := call.Argument(0).String()
	var types []string
	if raw, ok := call.Argument(1).Export().([]interface{}); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				types = append(types, s)
			}
		}
	}
	fn, ok := goja.AssertFunction(call.Argument(2))
	if !ok {
		panic(e.vm.NewTypeError("add_tree_action(): third argument must be a function"))
	}
	e.actions = append(e.actions, &TreeAction{Label: label, ApplicableTypes: types, fn: fn})
	return goja.Undefined()
}

// hostGetNote implements get_note(id). Resolves against the action buffer
// when one is active, falling back to the read-only query snapshot.
func (e *Engine) hostGetNote(id string) map[string]interface{} {
	if e.actionCtx != nil {
		return noteToMap(e.actionCtx.GetNote(id))
	}
	return noteToMap(e.queryCtx.Get(id))
}

func (e *Engine) hostGetChildren(parentID string) []map[string]interface{} {
	if e.actionCtx != nil {
		return notesToMaps(e.actionCtx.Children(parentID))
	}
	return notesToMaps(e.queryCtx.Children(parentID))
}

func (e *Engine) hostGetNotesOfType(nodeType string) []map[string]interface{} {
	if e.actionCtx != nil {
		return notesToMaps(e.actionCtx.OfType(nodeType))
	}
	return notesToMaps(e.queryCtx.OfType(nodeType))
}

// hostCreateNote implements create_note(parentId, nodeType), valid only
// while an action buffer is active. The new note is queued, not applied;
// the workspace engine stamps CreatedBy/ModifiedBy and persists it once
// the action closure returns cleanly.
func (e *Engine) hostCreateNote(parentID, nodeType string) map[string]interface{} {
	if e.actionCtx == nil {
		panic(e.vm.NewGoError(fmt.Errorf("create_note() is only callable from within a tree action")))
	}
	s := e.registry.Get(nodeType)
	if s == nil {
		panic(e.vm.NewGoError(fmt.Errorf("create_note(): unknown node type %q", nodeType)))
	}
	n := &model.Note{
		ID:         uuid.NewString(),
		NodeType:   nodeType,
		Position:   len(e.actionCtx.Children(parentID)),
		CreatedAt:  time.Now().Unix(),
		ModifiedAt: time.Now().Unix(),
		Fields:     schema.ApplyDefaults(s, nil),
	}
	if parentID != "" {
		pid := parentID
		n.ParentID = &pid
	}
	e.actionCtx.QueueCreate(n)
	return noteToMap(n)
}

// hostUpdateNote implements update_note(note), re-coercing fields against
// the note's own schema before buffering the change.
func (e *Engine) hostUpdateNote(raw map[string]interface{}) {
	if e.actionCtx == nil {
		panic(e.vm.NewGoError(fmt.Errorf("update_note() is only callable from within a tree action")))
	}
	id, _ := raw["id"].(string)
	if id == "" {
		panic(e.vm.NewGoError(fmt.Errorf("update_note(): note.id is required")))
	}
	existing := e.actionCtx.GetNote(id)
	if existing == nil {
		panic(e.vm.NewGoError(fmt.Errorf("update_note(): unknown note %q", id)))
	}
	n := existing.Clone()
	if title, ok := raw["title"].(string); ok {
		n.Title = title
	}
	if fieldsRaw, ok := raw["fields"].(map[string]interface{}); ok {
		s := e.registry.Get(n.NodeType)
		if s != nil {
			coerced, err := coerceFields(s, fieldsRaw)
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			n.Fields = coerced
		}
	}
	n.ModifiedAt = time.Now().Unix()
	e.actionCtx.QueueUpdate(n)
}

// escapeHTML is exposed to scripts as escape_html(s); on_view closures use
// it to sanitize interpolated field values before returning HTML — the
// core escapes, the shell renders.
func escapeHTML(s string) string {
	return html.EscapeString(s)
}

// formatDate re-exposes Go's date formatting to scripts as
// format_date(isoDate, layout), with a small set of friendly layout names
// in addition to Go reference layouts.
func formatDate(isoDate, layout string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, isoDate); err != nil {
			return isoDate
		}
	}
	switch layout {
	case "short":
		return t.Format("Jan 2, 2006")
	case "long":
		return t.Format("January 2, 2006")
	default:
		return t.Format(layout)
	}
}

// heading renders an on_view section title fragment.
func heading(s string) string {
	return "<h2>" + html.EscapeString(s) + "</h2>"
}

// displayText renders a plain paragraph fragment. Named displayText to
// avoid colliding with the text field kind elsewhere in this package.
func displayText(s string) string {
	return "<p>" + html.EscapeString(s) + "</p>"
}

// badge renders a small inline label fragment.
func badge(s string) string {
	return `<span class="kn-badge">` + html.EscapeString(s) + `</span>`
}

// divider renders a horizontal rule fragment.
func divider() string {
	return "<hr>"
}

// field renders one label/value pair fragment.
func field(label, value string) string {
	return `<div class="kn-field"><span class="kn-field-label">` + html.EscapeString(label) +
		`</span><span class="kn-field-value">` + html.EscapeString(value) + `</span></div>`
}

// displayFields renders every entry of m as a field(), sorted by key so
// output is deterministic across runs.
func displayFields(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<div class="kn-fields">`)
	for _, k := range keys {
		b.WriteString(field(k, fmt.Sprint(m[k])))
	}
	b.WriteString("</div>")
	return b.String()
}

// displayList renders items as an unordered list, each item HTML-escaped
// via its default string conversion.
func displayList(items []interface{}) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, item := range items {
		b.WriteString("<li>" + html.EscapeString(fmt.Sprint(item)) + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// table renders headers and rows as an HTML table. Each row is expected to
// be an array of cell values; rows that aren't are skipped.
func table(headers []string, rows []interface{}) string {
	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, h := range headers {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range rows {
		cells, ok := r.([]interface{})
		if !ok {
			continue
		}
		b.WriteString("<tr>")
		for _, c := range cells {
			b.WriteString("<td>" + html.EscapeString(fmt.Sprint(c)) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

// hostStack implements stack(...fragments): a vertical container. Arguments
// are expected to already be rendered (escaped) fragments from the other
// display helpers, so they are concatenated as-is rather than re-escaped.
func (e *Engine) hostStack(call goja.FunctionCall) goja.Value {
	return e.vm.ToValue(wrapFragments("kn-stack", call.Arguments))
}

// hostColumns implements columns(...fragments): a horizontal container.
func (e *Engine) hostColumns(call goja.FunctionCall) goja.Value {
	return e.vm.ToValue(wrapFragments("kn-columns", call.Arguments))
}

// hostSection implements section(title, ...fragments): a titled group.
func (e *Engine) hostSection(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		return e.vm.ToValue("")
	}
	var b strings.Builder
	b.WriteString("<section><h3>" + html.EscapeString(call.Argument(0).String()) + "</h3>")
	for _, a := range call.Arguments[1:] {
		b.WriteString(a.String())
	}
	b.WriteString("</section>")
	return e.vm.ToValue(b.String())
}

// wrapFragments concatenates already-rendered fragments inside a div
// carrying class.
func wrapFragments(class string, args []goja.Value) string {
	var b strings.Builder
	b.WriteString(`<div class="` + class + `">`)
	for _, a := range args {
		b.WriteString(a.String())
	}
	b.WriteString("</div>")
	return b.String()
}

func parseFieldDefinition(m map[string]interface{}) model.FieldDefinition {
	def := model.FieldDefinition{
		Name:     stringOf(m["name"]),
		Type:     model.FieldType(stringOf(m["type"])),
		Required: boolOf(m["required"]),
		CanEdit:  boolOfDefault(m["can_edit"], true),
		CanView:  boolOfDefault(m["can_view"], true),
	}
	if raw, ok := m["options"].([]interface{}); ok {
		for _, o := range raw {
			def.Options = append(def.Options, stringOf(o))
		}
	}
	if raw, ok := m["max"].(int64); ok {
		def.Max = int(raw)
	} else if raw, ok := m["max"].(float64); ok {
		def.Max = int(raw)
	}
	return def
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolOf(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func boolOfDefault(v interface{}, def bool) bool {
	if v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func boolProp(obj *goja.Object, key string, def bool) bool {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) {
		return def
	}
	b, ok := v.Export().(bool)
	if !ok {
		return def
	}
	return b
}

func strProp(obj *goja.Object, key, def string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) {
		return def
	}
	s := v.String()
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func stringSetProp(obj *goja.Object, key string) map[string]struct{} {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	raw, ok := v.Export().([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out[s] = struct{}{}
		}
	}
	return out
}
