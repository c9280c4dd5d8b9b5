package script

import (
	"github.com/careck/krillnotes/internal/model"
)

// noteToMap renders a Note into the plain map[string]interface{} shape
// scripts see for get_note/hook arguments. goja's reflection-based Go
// function binding converts this into a native JS object automatically.
func noteToMap(n *model.Note) map[string]interface{} {
	if n == nil {
		return nil
	}
	fields := make(map[string]interface{}, len(n.Fields))
	for k, v := range n.Fields {
		fields[k] = fieldValueToScript(v)
	}
	m := map[string]interface{}{
		"id":         n.ID,
		"title":      n.Title,
		"nodeType":   n.NodeType,
		"position":   n.Position,
		"createdAt":  n.CreatedAt,
		"modifiedAt": n.ModifiedAt,
		"isExpanded": n.IsExpanded,
		"fields":     fields,
	}
	if n.ParentID != nil {
		m["parentId"] = *n.ParentID
	} else {
		m["parentId"] = nil
	}
	return m
}

// fieldValueToScript unwraps a FieldValue into the bare Go scalar a script
// sees, per the coercion table's "Stored as" column read backwards.
func fieldValueToScript(v model.FieldValue) interface{} {
	switch v.Kind {
	case model.KindText:
		return v.Text
	case model.KindNumber:
		return v.Num
	case model.KindBoolean:
		return v.Bool
	default:
		return nil
	}
}

// notesToMaps renders a slice of notes for a host function's return value.
func notesToMaps(notes []*model.Note) []map[string]interface{} {
	out := make([]map[string]interface{}, len(notes))
	for i, n := range notes {
		out[i] = noteToMap(n)
	}
	return out
}
