package schema

import (
	"fmt"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
)

// ValidateRequired enforces write-validation order: every required field
// must be present and, for text-shaped
// types, non-empty. Number/boolean fields only need to be present — 0 and
// false are valid values, not "empty".
func ValidateRequired(s *model.Schema, fields model.FieldMap) error {
	for _, def := range s.Fields {
		if !def.Required {
			continue
		}
		v, ok := fields[def.Name]
		if !ok {
			return krillerr.New(krillerr.Scripting,
				fmt.Sprintf("required field %q is missing", def.Name))
		}
		if isTextShaped(def.Type) && v.Kind == model.KindText && v.Text == "" {
			return krillerr.New(krillerr.Scripting,
				fmt.Sprintf("required field %q must not be empty", def.Name))
		}
	}
	return nil
}

func isTextShaped(t model.FieldType) bool {
	switch t {
	case model.FieldText, model.FieldTextarea, model.FieldEmail, model.FieldSelect, model.FieldDate:
		return true
	default:
		return false
	}
}

// ApplyDefaults fills any field the schema declares but fields omits with
// its FieldDefinition.Default() — a missing key yields the schema default.
func ApplyDefaults(s *model.Schema, fields model.FieldMap) model.FieldMap {
	out := fields.Clone()
	if out == nil {
		out = make(model.FieldMap)
	}
	for _, def := range s.Fields {
		if _, ok := out[def.Name]; !ok {
			out[def.Name] = def.Default()
		}
	}
	return out
}
