package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

const auditFile = "audit.json"

// TableSnapshot is the on-disk form of one table: its records, the id
// counter and the per-locale translations.
type TableSnapshot struct {
	NextID       int64                    `json:"next_id"`
	Records      []schema.Record          `json:"records"`
	Translations map[int64]map[int]string `json:"translations,omitempty"`
}

// Persistence handles the disk I/O for the MemStore: one JSON file per
// table plus the audit trail, written atomically.
type Persistence struct {
	DataDir string
	mu      sync.Mutex
}

// NewPersistence initializes a persistence handler, creating the data
// directory if needed.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir}, nil
}

// SaveTable writes a table snapshot atomically: the temp file is renamed
// over the old one, so a crash leaves either the old file or the new one,
// never a torn write.
func (p *Persistence) SaveTable(table string, snap TableSnapshot) error {
	return p.writeJSON(table+".json", snap)
}

// SaveAudit writes the full audit trail.
func (p *Persistence) SaveAudit(entries []schema.AuditEntry) error {
	return p.writeJSON(auditFile, entries)
}

func (p *Persistence) writeJSON(name string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(p.DataDir, name)
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// LoadAll returns every table snapshot found in the data directory.
// Unreadable or corrupt files are skipped rather than failing the whole
// load.
func (p *Persistence) LoadAll() (map[string]TableSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps := make(map[string]TableSnapshot)
	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		name := file.Name()
		if filepath.Ext(name) != ".json" || name == auditFile {
			continue
		}
		content, err := os.ReadFile(filepath.Join(p.DataDir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read table file %s: %v\n", name, err)
			continue
		}
		var snap TableSnapshot
		if err := json.Unmarshal(content, &snap); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not unmarshal table file %s: %v\n", name, err)
			continue
		}
		snaps[strings.TrimSuffix(name, ".json")] = snap
	}
	return snaps, nil
}

// LoadAudit returns the persisted audit trail, or nil when none exists.
func (p *Persistence) LoadAudit() ([]schema.AuditEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	content, err := os.ReadFile(filepath.Join(p.DataDir, auditFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []schema.AuditEntry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
