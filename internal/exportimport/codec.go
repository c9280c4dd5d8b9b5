// Package exportimport implements the archive codec used to move a
// workspace between devices: a zip file with DEFLATE compression, every
// entry optionally wrapped in AES-256-GCM when a password is supplied.
package exportimport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/careck/krillnotes/internal/krillerr"
)

const (
	pbkdf2Iterations = 200_000
	aesKeyLength     = 32
	saltLength       = 16

	magicPlain     = 0x00
	magicEncrypted = 0x01
)

// deriveKey stretches password with salt into a 32-byte AES-256 key.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLength, sha256.New)
}

// encryptEntry wraps plaintext as salt||nonce||ciphertext, preceded by the
// 0x01 magic byte that marks an entry as encrypted.
func encryptEntry(password string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, krillerr.NewExport(krillerr.ExportIo, "generate salt", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportZip, "build cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportZip, "build GCM mode", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, krillerr.NewExport(krillerr.ExportIo, "generate nonce", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+saltLength+gcm.NonceSize()+len(ciphertext))
	out = append(out, magicEncrypted)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// plainEntry wraps plaintext with the 0x00 "not encrypted" magic byte.
func plainEntry(plaintext []byte) []byte {
	out := make([]byte, 0, 1+len(plaintext))
	out = append(out, magicPlain)
	out = append(out, plaintext...)
	return out
}

// wrapEntry prefixes raw with the encrypted or plain magic byte depending
// on whether password is non-empty.
func wrapEntry(password string, raw []byte) ([]byte, error) {
	if password == "" {
		return plainEntry(raw), nil
	}
	return encryptEntry(password, raw)
}

// isEncryptedEntry reports whether raw carries the encrypted magic byte.
// Used by Peek before a password is known.
func isEncryptedEntry(raw []byte) bool {
	return len(raw) > 0 && raw[0] == magicEncrypted
}

// unwrapEntry strips the magic byte and, for encrypted entries, decrypts
// with password. Returns krillerr.ExportInvalidPassword on GCM auth
// failure (the standard signal that the password is wrong).
func unwrapEntry(password string, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, krillerr.NewExport(krillerr.ExportInvalidFormat, "empty archive entry", nil)
	}
	magic, body := raw[0], raw[1:]

	switch magic {
	case magicPlain:
		return body, nil
	case magicEncrypted:
		if password == "" {
			return nil, krillerr.NewExport(krillerr.ExportEncryptedArchive, "archive is encrypted; a password is required", nil)
		}
		return decryptEntry(password, body)
	default:
		return nil, krillerr.NewExport(krillerr.ExportInvalidFormat, fmt.Sprintf("unknown entry magic byte %#x", magic), nil)
	}
}

func decryptEntry(password string, body []byte) ([]byte, error) {
	if len(body) < saltLength {
		return nil, krillerr.NewExport(krillerr.ExportInvalidFormat, "entry shorter than its salt", nil)
	}
	salt, rest := body[:saltLength], body[saltLength:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportZip, "build cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportZip, "build GCM mode", err)
	}

	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, krillerr.NewExport(krillerr.ExportInvalidFormat, "entry shorter than its nonce", nil)
	}
	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportInvalidPassword, "decryption failed; wrong password", err)
	}
	return plaintext, nil
}
