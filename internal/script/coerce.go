package script

import (
	"fmt"
	"time"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/model"
)

// dateLayouts are tried in order when coercing a "date" field; the first
// to parse wins and its canonical form is re-emitted with dateCanonical.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

func dateCanonical(t time.Time, layout string) string {
	if layout == time.RFC3339 {
		return t.Format(time.RFC3339)
	}
	return t.Format("2006-01-02")
}

// coerceFieldValue converts a raw script value (as produced by
// goja.Value.Export()) into a FieldValue typed per def. A missing raw
// value (ok=false) yields the schema default; a type mismatch is a
// Scripting error naming the field.
func coerceFieldValue(def model.FieldDefinition, raw interface{}, ok bool) (model.FieldValue, error) {
	if !ok || raw == nil {
		return def.Default(), nil
	}
	switch def.Type {
	case model.FieldText, model.FieldTextarea, model.FieldEmail:
		s, isStr := raw.(string)
		if !isStr {
			return model.FieldValue{}, fieldTypeError(def.Name, "string")
		}
		return model.TextValue(s), nil

	case model.FieldSelect:
		s, isStr := raw.(string)
		if !isStr {
			return model.FieldValue{}, fieldTypeError(def.Name, "string")
		}
		if len(def.Options) > 0 && !contains(def.Options, s) {
			return model.FieldValue{}, krillerr.New(krillerr.Scripting,
				fmt.Sprintf("field %q: %q is not one of the declared options", def.Name, s))
		}
		return model.TextValue(s), nil

	case model.FieldDate:
		s, isStr := raw.(string)
		if !isStr {
			return model.FieldValue{}, fieldTypeError(def.Name, "ISO date string")
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return model.TextValue(dateCanonical(t, layout)), nil
			}
		}
		return model.FieldValue{}, krillerr.New(krillerr.Scripting,
			fmt.Sprintf("field %q: %q is not a parseable ISO date", def.Name, s))

	case model.FieldNumber, model.FieldRating:
		n, isNum := toFloat(raw)
		if !isNum {
			return model.FieldValue{}, fieldTypeError(def.Name, "number")
		}
		if def.Type == model.FieldRating && def.Max > 0 && (n < 0 || n > float64(def.Max)) {
			return model.FieldValue{}, krillerr.New(krillerr.Scripting,
				fmt.Sprintf("field %q: rating %v out of range [0,%d]", def.Name, n, def.Max))
		}
		return model.NumberValue(n), nil

	case model.FieldBoolean:
		b, isBool := raw.(bool)
		if !isBool {
			return model.FieldValue{}, fieldTypeError(def.Name, "boolean")
		}
		return model.BoolValue(b), nil

	default:
		return model.FieldValue{}, krillerr.New(krillerr.Scripting,
			fmt.Sprintf("field %q: unknown field type %q", def.Name, def.Type))
	}
}

func fieldTypeError(name, want string) error {
	return krillerr.New(krillerr.Scripting, fmt.Sprintf("field %q: expected %s", name, want))
}

func contains(opts []string, s string) bool {
	for _, o := range opts {
		if o == s {
			return true
		}
	}
	return false
}

// toFloat coerces the Go types goja.Value.Export() commonly produces for
// JS numbers (int64, float64) into a float64, per "int coerced to float".
func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// coerceFields applies coerceFieldValue across every field the schema
// declares, reading from a raw map[string]interface{} such as a hook's
// exported return value.
func coerceFields(s *model.Schema, raw map[string]interface{}) (model.FieldMap, error) {
	out := make(model.FieldMap, len(s.Fields))
	for _, def := range s.Fields {
		v, ok := raw[def.Name]
		fv, err := coerceFieldValue(def, v, ok)
		if err != nil {
			return nil, err
		}
		out[def.Name] = fv
	}
	return out, nil
}
