package model

// FieldType enumerates the field kinds a FieldDefinition may declare.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldEmail    FieldType = "email"
	FieldSelect   FieldType = "select"
	FieldRating   FieldType = "rating"
)

// ChildrenSort controls how a schema orders its notes' children for
// display purposes.
type ChildrenSort string

const (
	SortNone ChildrenSort = "none"
	SortAsc  ChildrenSort = "asc"
	SortDesc ChildrenSort = "desc"
)

// FieldDefinition describes one field slot in a Schema.
type FieldDefinition struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	CanEdit  bool      `json:"canEdit"`
	CanView  bool      `json:"canView"`

	// Options is meaningful only when Type == FieldSelect.
	Options []string `json:"options,omitempty"`
	// Max is meaningful only when Type == FieldRating.
	Max int `json:"max,omitempty"`
}

// Default returns the zero value this field coerces to when absent from a
// script-authored note map.
func (f FieldDefinition) Default() FieldValue {
	switch f.Type {
	case FieldNumber, FieldRating:
		return NumberValue(0)
	case FieldBoolean:
		return BoolValue(false)
	default:
		return TextValue("")
	}
}

// HookName enumerates the three lifecycle hook slots a Schema may bind.
type HookName string

const (
	HookOnSave     HookName = "on_save"
	HookOnView     HookName = "on_view"
	HookOnAddChild HookName = "on_add_child"
)

// TreeAction is a user-authored command offered for notes of the listed
// types. The ClosureRef field is an opaque handle the script runtime resolves
// back to a callable; model stays engine-agnostic.
type TreeAction struct {
	Label            string
	ApplicableTypes  []string
	ClosureRef       int // index into the owning script.Engine's action table
}

// Schema is the typed shape (fields + hooks + constraints) for one kind of
// note, as declared by a user script's schema(name, defmap) call.
type Schema struct {
	Name         string
	Fields       []FieldDefinition
	TitleCanView bool
	TitleCanEdit bool
	ChildrenSort ChildrenSort

	// Empty sets mean "unrestricted".
	AllowedParentTypes   map[string]struct{}
	AllowedChildrenTypes map[string]struct{}

	// HookRefs maps a HookName present in the defmap to an opaque handle
	// the script.Engine resolves back to a bound goja callable.
	HookRefs map[HookName]int

	// DeclaredBy holds the UserScript.ID of the declaring script. The
	// script engine's schema() host function does not set it, so it is
	// empty for every schema registered from a script.
	DeclaredBy string

	// LoadOrder holds the declaring script's load_order. The script
	// engine's schema() host function does not set it, so it is 0 for
	// every schema registered from a script.
	LoadOrder int
}

// FieldByName looks up a field definition by name, returning ok=false if
// the schema declares no such field.
func (s *Schema) FieldByName(name string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// AllowsParent reports whether a note of this schema may be created under
// a parent of parentType. An empty AllowedParentTypes means unrestricted.
func (s *Schema) AllowsParent(parentType string) bool {
	if len(s.AllowedParentTypes) == 0 {
		return true
	}
	_, ok := s.AllowedParentTypes[parentType]
	return ok
}

// AllowsChild reports whether a note of this schema may accept a child of
// childType. An empty AllowedChildrenTypes means unrestricted.
func (s *Schema) AllowsChild(childType string) bool {
	if len(s.AllowedChildrenTypes) == 0 {
		return true
	}
	_, ok := s.AllowedChildrenTypes[childType]
	return ok
}
