// Package model holds the data types shared by storage, the schema
// registry, the script runtime and the workspace engine: Note, FieldValue,
// Schema, Operation payloads, UserScript, and the transient script
// contexts (QueryContext, ActionTxContext).
package model

// Note is one node in the tree. Invariants maintained elsewhere: parent
// existence, no cycles, contiguous sibling positions.
type Note struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	NodeType    string   `json:"nodeType"`
	ParentID    *string  `json:"parentId,omitempty"`
	Position    int      `json:"position"`
	CreatedAt   int64    `json:"createdAt"`
	ModifiedAt  int64    `json:"modifiedAt"`
	CreatedBy   int64    `json:"createdBy"`
	ModifiedBy  int64    `json:"modifiedBy"`
	Fields      FieldMap `json:"fields"`
	IsExpanded  bool     `json:"isExpanded"`
}

// Clone returns a deep-enough copy for scripts to mutate without touching
// the engine's own snapshot copy.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Fields = n.Fields.Clone()
	if n.ParentID != nil {
		pid := *n.ParentID
		cp.ParentID = &pid
	}
	return &cp
}

// HasParent reports whether the note has a parent id set.
func (n *Note) HasParent() bool { return n.ParentID != nil }
