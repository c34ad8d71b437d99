package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// BulkExporter dumps a table's full state, ids and translations included.
type BulkExporter interface {
	Export(table string) (TableSnapshot, error)
}

// BulkImporter replaces a table's state wholesale, preserving record ids.
type BulkImporter interface {
	Import(table string, snap TableSnapshot) error
}

// Copy moves the named tables from a source store to a destination store.
// This works for:
// - JSON files -> sqlite (the "upgrade")
// - sqlite -> in-memory (seeding a throwaway session)
// Ids survive the copy, so cross-table references stay intact.
func Copy(src BulkExporter, dst BulkImporter, tables []string) error {
	for _, table := range tables {
		snap, err := src.Export(table)
		if err != nil {
			return fmt.Errorf("exporting %s: %w", table, err)
		}
		if err := dst.Import(table, snap); err != nil {
			return fmt.Errorf("importing %s: %w", table, err)
		}
	}
	return nil
}

// Export dumps one registered table.
func (m *MemStore) Export(table string) (TableSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	td, ok := m.tables[table]
	if !ok {
		return TableSnapshot{}, fmt.Errorf("unknown table %q", table)
	}
	return snapshotTable(td), nil
}

// Import replaces one registered table's records and translations.
func (m *MemStore) Import(table string, snap TableSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	td.records = make(map[int64]schema.Record, len(snap.Records))
	for _, rec := range snap.Records {
		td.records[rec.ID] = cloneRecord(rec)
	}
	td.nextID = snap.NextID
	td.translations = make(map[int64]map[int]string, len(snap.Translations))
	for id, byLocale := range snap.Translations {
		cp := make(map[int]string, len(byLocale))
		for k, v := range byLocale {
			cp[k] = v
		}
		td.translations[id] = cp
	}
	m.saveLocked(table)
	return nil
}

// Export dumps one table from the database.
func (s *SQLStore) Export(table string) (TableSnapshot, error) {
	if _, ok := s.def(table); !ok {
		return TableSnapshot{}, fmt.Errorf("unknown table %q", table)
	}
	records, err := s.List(schema.RequestContext{}, table, schema.ListParams{})
	if err != nil {
		return TableSnapshot{}, err
	}
	snap := TableSnapshot{
		Records:      records,
		Translations: make(map[int64]map[int]string),
	}
	for _, rec := range records {
		if rec.ID > snap.NextID {
			snap.NextID = rec.ID
		}
	}
	rows, err := s.db.Query(`SELECT record_id, locale_id, txt FROM translations WHERE tbl = ?`, table)
	if err != nil {
		return TableSnapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var localeID int
		var txt string
		if err := rows.Scan(&id, &localeID, &txt); err != nil {
			return TableSnapshot{}, err
		}
		if snap.Translations[id] == nil {
			snap.Translations[id] = make(map[int]string)
		}
		snap.Translations[id][localeID] = txt
	}
	return snap, rows.Err()
}

// Import replaces one table's rows and translations in a single transaction.
func (s *SQLStore) Import(table string, snap TableSnapshot) error {
	if _, ok := s.def(table); !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM records WHERE tbl = ?`, table); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM translations WHERE tbl = ?`, table); err != nil {
		return err
	}
	for _, rec := range snap.Records {
		fieldsJSON, err := json.Marshal(rec.Fields)
		if err != nil {
			return err
		}
		active := 0
		if rec.IsActive {
			active = 1
		}
		_, err = tx.Exec(
			`INSERT INTO records (tbl, id, code, fields, is_active, created_at, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			table, rec.ID, rec.Code, string(fieldsJSON), active,
			rec.CreatedAt.Format(time.RFC3339Nano), rec.CreatedBy)
		if err != nil {
			return err
		}
	}
	for id, byLocale := range snap.Translations {
		for localeID, txt := range byLocale {
			_, err := tx.Exec(
				`INSERT INTO translations (tbl, record_id, locale_id, txt) VALUES (?, ?, ?, ?)`,
				table, id, localeID, txt)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}
