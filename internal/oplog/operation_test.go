package oplog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOperationRoundTrip checks that every operation variant's JSON
// round-trips with its id, type tag and data unchanged.
func TestOperationRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		op   func() (Operation, error)
	}{
		{"create", func() (Operation, error) {
			return NewCreateNote("device-1", 100, CreateNotePayload{NoteID: "n1", Title: "T", NodeType: "Folder", Position: 2})
		}},
		{"update", func() (Operation, error) {
			return NewUpdateField("device-1", 100, UpdateFieldPayload{NoteID: "n1", ChangedFields: []string{"title", "count"}})
		}},
		{"delete", func() (Operation, error) {
			return NewDeleteNote("device-1", 100, DeleteNotePayload{NoteID: "n1", Title: "T"})
		}},
		{"move", func() (Operation, error) {
			return NewMoveNote("device-1", 100, MoveNotePayload{NoteID: "n1", NewParentID: "p1", NewPosition: 3})
		}},
		{"create_script", func() (Operation, error) {
			return NewCreateUserScript("device-1", 100, UserScriptPayload{ScriptID: "s1", Name: "Widgets"})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, err := tc.op()
			require.NoError(t, err)

			raw, err := json.Marshal(op)
			require.NoError(t, err)

			var roundTripped Operation
			require.NoError(t, json.Unmarshal(raw, &roundTripped))

			require.Equal(t, op.OperationID, roundTripped.OperationID)
			require.Equal(t, op.Type, roundTripped.Type)
			require.JSONEq(t, string(op.Data), string(roundTripped.Data))
		})
	}
}

func TestTargetNamePrecedence(t *testing.T) {
	op, err := NewCreateNote("d", 1, CreateNotePayload{NoteID: "n1", Title: "My Note", NodeType: "X"})
	require.NoError(t, err)
	require.Equal(t, "My Note", targetName(op.Type, op.Data))

	op2, err := NewDeleteNote("d", 1, DeleteNotePayload{NoteID: "n2"})
	require.NoError(t, err)
	require.Equal(t, "n2", targetName(op2.Type, op2.Data))
}
