package command

import "github.com/careck/krillnotes/internal/krillerr"

// Sentinel converts err to one of two stable strings a shell can branch on
// after a failed peek or import: "ENCRYPTED_ARCHIVE" and "INVALID_PASSWORD".
// Returns "" for every other error, which the shell should instead surface
// via its human-readable message and Kind.
func Sentinel(err error) string {
	sub, ok := krillerr.SubKindOf(err)
	if !ok {
		return ""
	}
	switch sub {
	case krillerr.ExportEncryptedArchive:
		return "ENCRYPTED_ARCHIVE"
	case krillerr.ExportInvalidPassword:
		return "INVALID_PASSWORD"
	default:
		return ""
	}
}
