package exportimport

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/careck/krillnotes/internal/device"
	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/logging"
	"github.com/careck/krillnotes/internal/model"
	"github.com/careck/krillnotes/internal/storage"
)

// FormatVersion is the only archive version this codec understands.
const FormatVersion = 1

// AppVersion is compared against an archive's recorded appVersion by the
// caller; the codec itself never rejects on it.
const AppVersion = "1.0.0"

const (
	entryNotes       = "notes.json"
	entryScriptsMeta = "scripts/scripts.json"
	entryScriptDir   = "scripts/"
)

type notesDocument struct {
	Version    int          `json:"version"`
	AppVersion string       `json:"appVersion"`
	Notes      []model.Note `json:"notes"`
}

type scriptEntry struct {
	Filename  string `json:"filename"`
	LoadOrder int    `json:"loadOrder"`
	Enabled   bool   `json:"enabled"`
}

type scriptsDocument struct {
	Scripts []scriptEntry `json:"scripts"`
}

// Export writes a full archive of the workspace's notes and user scripts
// to w. Operations and workspace_meta are excluded. When password is
// non-empty, every entry is AES-256-GCM encrypted.
func Export(ctx context.Context, q storage.Queryer, w io.Writer, password string) error {
	log := logging.WithComponent("exportimport")

	notes, err := storage.ListAll(ctx, q)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "list notes", err)
	}
	scripts, err := storage.ListUserScripts(ctx, q)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "list user scripts", err)
	}

	flatNotes := make([]model.Note, len(notes))
	for i, n := range notes {
		flatNotes[i] = *n
	}
	doc := notesDocument{Version: FormatVersion, AppVersion: AppVersion, Notes: flatNotes}
	notesJSON, err := json.Marshal(doc)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportJson, "marshal notes.json", err)
	}

	names := make([]string, len(scripts))
	for i, s := range scripts {
		names[i] = s.Name
	}
	slugs := uniqueSlugs(names)

	scriptsMeta := scriptsDocument{}
	zw := zip.NewWriter(w)

	if err := writeEntry(zw, entryNotes, notesJSON, password); err != nil {
		return err
	}

	for i, s := range scripts {
		filename := entryScriptDir + slugs[i] + ".rhai"
		scriptsMeta.Scripts = append(scriptsMeta.Scripts, scriptEntry{
			Filename: slugs[i] + ".rhai", LoadOrder: s.LoadOrder, Enabled: s.Enabled,
		})
		if err := writeEntry(zw, filename, []byte(s.SourceCode), password); err != nil {
			return err
		}
	}

	scriptsMetaJSON, err := json.Marshal(scriptsMeta)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportJson, "marshal scripts.json", err)
	}
	if err := writeEntry(zw, entryScriptsMeta, scriptsMetaJSON, password); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return krillerr.NewExport(krillerr.ExportZip, "close archive", err)
	}
	log.Info().Int("notes", len(notes)).Int("scripts", len(scripts)).Bool("encrypted", password != "").
		Msg("workspace exported")
	return nil
}

func writeEntry(zw *zip.Writer, name string, plaintext []byte, password string) error {
	wrapped, err := wrapEntry(password, plaintext)
	if err != nil {
		return err
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return krillerr.NewExport(krillerr.ExportZip, "create entry "+name, err)
	}
	if _, err := fw.Write(wrapped); err != nil {
		return krillerr.NewExport(krillerr.ExportZip, "write entry "+name, err)
	}
	return nil
}

// PeekResult summarizes an archive without importing it.
type PeekResult struct {
	AppVersion  string
	NoteCount   int
	ScriptCount int
}

// Peek opens the archive in r, reading notes.json and scripts.json.
// Returns krillerr.ExportEncryptedArchive when notes.json is encrypted and
// no password was given, or krillerr.ExportInvalidPassword when the
// supplied password fails to decrypt it.
func Peek(r io.ReaderAt, size int64, password string) (PeekResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return PeekResult{}, krillerr.NewExport(krillerr.ExportZip, "open archive", err)
	}

	notesRaw, err := readEntryRaw(zr, entryNotes)
	if err != nil {
		return PeekResult{}, err
	}
	if password == "" && isEncryptedEntry(notesRaw) {
		return PeekResult{}, krillerr.NewExport(krillerr.ExportEncryptedArchive,
			"archive is encrypted; a password is required", nil)
	}

	notesJSON, err := unwrapEntry(password, notesRaw)
	if err != nil {
		return PeekResult{}, err
	}
	var doc notesDocument
	if err := json.Unmarshal(notesJSON, &doc); err != nil {
		return PeekResult{}, krillerr.NewExport(krillerr.ExportJson, "parse notes.json", err)
	}
	if doc.Version != FormatVersion {
		return PeekResult{}, krillerr.NewExport(krillerr.ExportInvalidFormat,
			fmt.Sprintf("unsupported archive version %d", doc.Version), nil)
	}

	scriptsRaw, err := readEntryRaw(zr, entryScriptsMeta)
	if err != nil {
		return PeekResult{}, err
	}
	scriptsJSON, err := unwrapEntry(password, scriptsRaw)
	if err != nil {
		return PeekResult{}, err
	}
	var scriptsDoc scriptsDocument
	if err := json.Unmarshal(scriptsJSON, &scriptsDoc); err != nil {
		return PeekResult{}, krillerr.NewExport(krillerr.ExportJson, "parse scripts.json", err)
	}

	return PeekResult{
		AppVersion:  doc.AppVersion,
		NoteCount:   len(doc.Notes),
		ScriptCount: len(scriptsDoc.Scripts),
	}, nil
}

func readEntryRaw(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportInvalidFormat, "missing entry "+name, err)
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, krillerr.NewExport(krillerr.ExportIo, "read entry "+name, err)
	}
	return raw, nil
}

// Import re-opens the archive in r, creates a fresh database at dbPath,
// seeds workspace_meta, and bulk-inserts every note (preserving id,
// parent_id and position) and every user script (fresh UUIDs; load_order
// and enabled preserved).
func Import(ctx context.Context, r io.ReaderAt, size int64, dbPath, password string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportZip, "open archive", err)
	}

	notesRaw, err := readEntryRaw(zr, entryNotes)
	if err != nil {
		return err
	}
	notesJSON, err := unwrapEntry(password, notesRaw)
	if err != nil {
		return err
	}
	var doc notesDocument
	if err := json.Unmarshal(notesJSON, &doc); err != nil {
		return krillerr.NewExport(krillerr.ExportJson, "parse notes.json", err)
	}
	if doc.Version != FormatVersion {
		return krillerr.NewExport(krillerr.ExportInvalidFormat,
			fmt.Sprintf("unsupported archive version %d", doc.Version), nil)
	}

	scriptsMetaRaw, err := readEntryRaw(zr, entryScriptsMeta)
	if err != nil {
		return err
	}
	scriptsMetaJSON, err := unwrapEntry(password, scriptsMetaRaw)
	if err != nil {
		return err
	}
	var scriptsDoc scriptsDocument
	if err := json.Unmarshal(scriptsMetaJSON, &scriptsDoc); err != nil {
		return krillerr.NewExport(krillerr.ExportJson, "parse scripts.json", err)
	}

	scriptSources := make([]string, len(scriptsDoc.Scripts))
	for i, entry := range scriptsDoc.Scripts {
		raw, err := readEntryRaw(zr, entryScriptDir+entry.Filename)
		if err != nil {
			return err
		}
		source, err := unwrapEntry(password, raw)
		if err != nil {
			return err
		}
		scriptSources[i] = string(source)
	}

	store, err := storage.Create(ctx, dbPath)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "create workspace file", err)
	}
	defer store.Close()

	deviceID, err := device.Derive()
	if err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "derive device identity", err)
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "begin transaction", err)
	}
	defer tx.Rollback()

	if err := storage.SetMeta(ctx, tx, storage.MetaDeviceID, deviceID); err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "seed device_id", err)
	}
	if err := storage.SetMeta(ctx, tx, storage.MetaCurrentUserID, "0"); err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "seed current_user_id", err)
	}

	for i := range doc.Notes {
		n := doc.Notes[i]
		if err := storage.InsertNote(ctx, tx, &n); err != nil {
			return krillerr.NewExport(krillerr.ExportDatabase, "insert note "+n.ID, err)
		}
	}

	moment := time.Now().Unix()
	for i, entry := range scriptsDoc.Scripts {
		s := &model.UserScript{
			ID:         uuid.NewString(),
			Name:       entry.Filename,
			SourceCode: scriptSources[i],
			LoadOrder:  entry.LoadOrder,
			Enabled:    entry.Enabled,
			CreatedAt:  moment,
			ModifiedAt: moment,
		}
		if err := storage.InsertUserScript(ctx, tx, s); err != nil {
			return krillerr.NewExport(krillerr.ExportDatabase, "insert user script "+entry.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return krillerr.NewExport(krillerr.ExportDatabase, "commit import", err)
	}

	logging.WithComponent("exportimport").Info().
		Int("notes", len(doc.Notes)).Int("scripts", len(scriptsDoc.Scripts)).
		Str("db_path", dbPath).Msg("workspace imported")
	return nil
}
