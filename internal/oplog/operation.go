// Package oplog implements the durable operation log: a tagged-record
// journal of every mutation, written in the same transaction as the
// mutation itself, purged by policy.
//
// The tagging scheme ({Type, Data}) follows the cuemby-warren raft FSM's
// Command{Op, Data json.RawMessage} envelope: one switch, no reflection,
// exhaustive per variant.
package oplog

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Type enumerates the seven mutation variants an operation can log.
type Type string

const (
	TypeCreateNote       Type = "CreateNote"
	TypeUpdateField      Type = "UpdateField"
	TypeDeleteNote       Type = "DeleteNote"
	TypeMoveNote         Type = "MoveNote"
	TypeCreateUserScript Type = "CreateUserScript"
	TypeUpdateUserScript Type = "UpdateUserScript"
	TypeDeleteUserScript Type = "DeleteUserScript"
)

// Operation is the durable envelope: every variant carries an operation
// id, timestamp, device id, and its own JSON payload.
type Operation struct {
	OperationID string          `json:"operationId"`
	Timestamp   int64           `json:"timestamp"`
	DeviceID    string          `json:"deviceId"`
	Type        Type            `json:"type"`
	Data        json.RawMessage `json:"data"`
}

func newOperation(deviceID string, now int64, typ Type, payload any) (Operation, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Operation{}, err
	}
	return Operation{
		OperationID: uuid.NewString(),
		Timestamp:   now,
		DeviceID:    deviceID,
		Type:        typ,
		Data:        data,
	}, nil
}

// CreateNotePayload is TypeCreateNote's data.
type CreateNotePayload struct {
	NoteID   string `json:"noteId"`
	Title    string `json:"title"`
	NodeType string `json:"nodeType"`
	ParentID string `json:"parentId,omitempty"`
	Position int    `json:"position"`
}

// NewCreateNote builds a CreateNote operation.
func NewCreateNote(deviceID string, now int64, p CreateNotePayload) (Operation, error) {
	return newOperation(deviceID, now, TypeCreateNote, p)
}

// UpdateFieldPayload is TypeUpdateField's data. One operation summarizes
// every field changed by a single update_note call.
type UpdateFieldPayload struct {
	NoteID        string   `json:"noteId"`
	Field         string   `json:"field,omitempty"` // set when exactly one field changed
	ChangedFields []string `json:"changedFields"`
}

// NewUpdateField builds an UpdateField operation.
func NewUpdateField(deviceID string, now int64, p UpdateFieldPayload) (Operation, error) {
	if len(p.ChangedFields) == 1 {
		p.Field = p.ChangedFields[0]
	}
	return newOperation(deviceID, now, TypeUpdateField, p)
}

// DeleteNotePayload is TypeDeleteNote's data.
type DeleteNotePayload struct {
	NoteID string `json:"noteId"`
	Title  string `json:"title"`
}

// NewDeleteNote builds a DeleteNote operation.
func NewDeleteNote(deviceID string, now int64, p DeleteNotePayload) (Operation, error) {
	return newOperation(deviceID, now, TypeDeleteNote, p)
}

// MoveNotePayload is TypeMoveNote's data.
type MoveNotePayload struct {
	NoteID      string `json:"noteId"`
	OldParentID string `json:"oldParentId,omitempty"`
	NewParentID string `json:"newParentId,omitempty"`
	NewPosition int    `json:"newPosition"`
}

// NewMoveNote builds a MoveNote operation.
func NewMoveNote(deviceID string, now int64, p MoveNotePayload) (Operation, error) {
	return newOperation(deviceID, now, TypeMoveNote, p)
}

// UserScriptPayload is shared by the three user-script operation variants.
type UserScriptPayload struct {
	ScriptID string `json:"scriptId"`
	Name     string `json:"name,omitempty"`
}

// NewCreateUserScript builds a CreateUserScript operation.
func NewCreateUserScript(deviceID string, now int64, p UserScriptPayload) (Operation, error) {
	return newOperation(deviceID, now, TypeCreateUserScript, p)
}

// NewUpdateUserScript builds an UpdateUserScript operation.
func NewUpdateUserScript(deviceID string, now int64, p UserScriptPayload) (Operation, error) {
	return newOperation(deviceID, now, TypeUpdateUserScript, p)
}

// NewDeleteUserScript builds a DeleteUserScript operation.
func NewDeleteUserScript(deviceID string, now int64, p UserScriptPayload) (Operation, error) {
	return newOperation(deviceID, now, TypeDeleteUserScript, p)
}

// targetName extracts the summary's target_name: title, then name, then
// field, then note_id/script_id, whichever is present first.
func targetName(typ Type, data json.RawMessage) string {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return ""
	}
	for _, key := range []string{"title", "name", "field"} {
		if raw, ok := generic[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}
	for _, key := range []string{"noteId", "scriptId"} {
		if raw, ok := generic[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}
	return ""
}
