// Package store persists the consent document as a single JSON file with
// atomic replace semantics. Loading never fails: corrupt or missing data
// degrades to an empty, valid document so the worst case is always "treat as
// not consented".
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"memebot/internal/consent/models"
)

// SchemaVersion is the current persisted document schema.
const SchemaVersion = 2

// DefaultAuditKeepLast bounds the audit trail; older entries are dropped on
// save. Bounded retention is deliberate: the file must stay small enough to
// rewrite on every mutation.
const DefaultAuditKeepLast = 500

// Document is the whole persisted consent state: one record per user plus
// the ordered audit trail.
type Document struct {
	SchemaVersion int                       `json:"schema_version"`
	Users         map[string]*models.Record `json:"users"`
	AuditLog      []models.AuditEntry       `json:"audit_log"`
}

// NewDocument returns an empty, valid document.
func NewDocument() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Users:         make(map[string]*models.Record),
		AuditLog:      []models.AuditEntry{},
	}
}

// LoadStatus tags which parse path Load took, so callers and tests can tell
// a clean read from a repaired or reset one.
type LoadStatus string

const (
	// LoadValid means the file decoded cleanly with all expected fields.
	LoadValid LoadStatus = "valid"
	// LoadRepaired means the file decoded but one or more fields were
	// missing or malformed and were replaced with empty values.
	LoadRepaired LoadStatus = "repaired"
	// LoadEmpty means the file was absent or unreadable and a fresh empty
	// document was returned.
	LoadEmpty LoadStatus = "empty"
)

// FileStore owns the backing file. No other component reads or writes it.
type FileStore struct {
	path          string
	auditKeepLast int
}

// Option configures the FileStore.
type Option func(*FileStore)

// WithAuditKeepLast overrides the audit retention bound applied on save.
func WithAuditKeepLast(keepLast int) Option {
	return func(fs *FileStore) {
		if keepLast > 0 {
			fs.auditKeepLast = keepLast
		}
	}
}

// NewFileStore creates a store backed by the given path.
func NewFileStore(path string, opts ...Option) *FileStore {
	fs := &FileStore{path: path, auditKeepLast: DefaultAuditKeepLast}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Path returns the backing file location.
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the document from disk. It never fails: a missing or corrupt
// file yields an empty document, and individually malformed fields are
// repaired rather than resetting the rest of the document.
func (fs *FileStore) Load() (*Document, LoadStatus) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return NewDocument(), LoadEmpty
	}

	var raw struct {
		SchemaVersion *int                      `json:"schema_version"`
		Users         map[string]*models.Record `json:"users"`
		AuditLog      []models.AuditEntry       `json:"audit_log"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewDocument(), LoadEmpty
	}

	doc := &Document{SchemaVersion: SchemaVersion}
	status := LoadValid

	if raw.SchemaVersion == nil {
		status = LoadRepaired
	} else {
		doc.SchemaVersion = *raw.SchemaVersion
	}

	if raw.Users == nil {
		doc.Users = make(map[string]*models.Record)
		status = LoadRepaired
	} else {
		doc.Users = raw.Users
		// A null record under a key carries no usable state; drop it.
		for userID, record := range raw.Users {
			if record == nil {
				delete(doc.Users, userID)
				status = LoadRepaired
			}
		}
	}

	if raw.AuditLog == nil {
		doc.AuditLog = []models.AuditEntry{}
		status = LoadRepaired
	} else {
		doc.AuditLog = raw.AuditLog
	}

	return doc, status
}

// Save writes the whole document atomically: marshal, write to a temp file
// beside the target, then rename over it. Parent directories are created as
// needed and the audit trail is trimmed to the retention bound.
func (fs *FileStore) Save(doc *Document) error {
	doc.SchemaVersion = SchemaVersion
	doc.AuditLog = TrimAuditLog(doc.AuditLog, fs.auditKeepLast)
	if doc.Users == nil {
		doc.Users = make(map[string]*models.Record)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal consent document: %w", err)
	}

	if dir := filepath.Dir(fs.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create consent directory: %w", err)
		}
	}

	tmpPath := fs.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temp consent file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("replace consent file: %w", err)
	}
	return nil
}

// TrimAuditLog keeps only the most recent keepLast entries in their original
// relative order. A non-positive bound empties the log.
func TrimAuditLog(entries []models.AuditEntry, keepLast int) []models.AuditEntry {
	if keepLast <= 0 {
		return []models.AuditEntry{}
	}
	if len(entries) <= keepLast {
		return entries
	}
	return entries[len(entries)-keepLast:]
}
