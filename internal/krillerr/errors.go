// Package krillerr defines the typed error kinds returned across the
// workspace engine, matching the sentinel set the command surface must
// branch on.
package krillerr

import "fmt"

// Kind is a closed set of error categories surfaced by the core.
type Kind string

const (
	Database         Kind = "DATABASE"
	Json             Kind = "JSON"
	Scripting        Kind = "SCRIPTING"
	SchemaNotFound   Kind = "SCHEMA_NOT_FOUND"
	NoteNotFound     Kind = "NOTE_NOT_FOUND"
	InvalidWorkspace Kind = "INVALID_WORKSPACE"
	InvalidMove      Kind = "INVALID_MOVE"
	Export           Kind = "EXPORT_ERROR"
	Script           Kind = "SCRIPT_ERROR"
)

// ExportSubKind further categorizes Export errors per spec.
type ExportSubKind string

const (
	ExportIo               ExportSubKind = "IO"
	ExportZip              ExportSubKind = "ZIP"
	ExportJson             ExportSubKind = "JSON"
	ExportInvalidFormat    ExportSubKind = "INVALID_FORMAT"
	ExportDatabase         ExportSubKind = "DATABASE"
	ExportEncryptedArchive ExportSubKind = "ENCRYPTED_ARCHIVE"
	ExportInvalidPassword  ExportSubKind = "INVALID_PASSWORD"
)

// Error is the structured error type returned by the core. It wraps an
// underlying cause (if any) while keeping a stable Kind for callers to
// branch on without parsing messages.
type Error struct {
	Kind    Kind
	Sub     ExportSubKind // only meaningful when Kind == Export
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with no underlying cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an *Error that wraps cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NewExport builds an *Error with Kind == Export and the given sub-kind.
func NewExport(sub ExportSubKind, msg string, cause error) *Error {
	return &Error{Kind: Export, Sub: sub, Message: msg, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; the zero Kind otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// SubKindOf extracts the ExportSubKind from err if it is an *Error with
// Kind == Export.
func SubKindOf(err error) (ExportSubKind, bool) {
	var e *Error
	if as(err, &e) && e.Kind == Export {
		return e.Sub, true
	}
	return "", false
}

// as is a tiny errors.As shim kept local to avoid importing "errors" twice
// in call sites that already alias it. It follows single-error Unwrap()
// chains only: it does not descend into Unwrap() []error and does not call
// As methods.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
