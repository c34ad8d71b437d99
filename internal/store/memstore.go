// Package store implements the master-data store behind the SDK interface:
// an in-memory engine with background JSON persistence, and a SQL variant.
package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// ErrCodeRequired is returned when a create or update leaves the record
// without a machine code.
var ErrCodeRequired = errors.New("code is required")

type tableData struct {
	def     schema.TableDef
	records map[int64]schema.Record
	nextID  int64
	// translations: record id -> locale id -> text
	translations map[int64]map[int]string
}

// MemStore is the embedded master-data engine. It owns id assignment, code
// uniqueness, soft deletes with a referential guard over the registered
// foreign-key columns, per-locale translations and the audit trail.
type MemStore struct {
	mu        sync.RWMutex
	tables    map[string]*tableData
	audit     []schema.AuditEntry
	actors    map[string]string
	persister *Persistence
	wg        sync.WaitGroup
}

// NewMemStore initializes an empty store. The persister may be nil for a
// purely in-memory store (tests, throwaway sessions).
func NewMemStore(p *Persistence) *MemStore {
	return &MemStore{
		tables:    make(map[string]*tableData),
		actors:    make(map[string]string),
		persister: p,
	}
}

// Register adds the table definitions the store serves. Definitions drive
// which diff fields an update applies and which columns the referential
// guard scans.
func (m *MemStore) Register(defs ...schema.TableDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range defs {
		if _, ok := m.tables[def.Name]; ok {
			m.tables[def.Name].def = def
			continue
		}
		m.tables[def.Name] = &tableData{
			def:          def,
			records:      make(map[int64]schema.Record),
			translations: make(map[int64]map[int]string),
		}
	}
}

// SetActor associates an auth token with an actor name for audit entries.
func (m *MemStore) SetActor(token, actor string) {
	m.mu.Lock()
	m.actors[token] = actor
	m.mu.Unlock()
}

// Restore loads previously persisted snapshots into registered tables.
func (m *MemStore) Restore(snaps map[string]TableSnapshot, audit []schema.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, snap := range snaps {
		td, ok := m.tables[name]
		if !ok {
			continue
		}
		for _, rec := range snap.Records {
			td.records[rec.ID] = rec
		}
		td.nextID = snap.NextID
		for id, byLocale := range snap.Translations {
			td.translations[id] = byLocale
		}
	}
	m.audit = append(m.audit, audit...)
}

// Wait blocks until all background persistence tasks have finished.
func (m *MemStore) Wait() { m.wg.Wait() }

// --- sdk.MasterStore ---

func (m *MemStore) List(rctx schema.RequestContext, table string, params schema.ListParams) ([]schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.tables[table]
	if !ok {
		return nil, schema.ErrUnknownTable
	}
	out := make([]schema.Record, 0, len(td.records))
	for _, rec := range td.records {
		if params.ActiveOnly && !rec.IsActive {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) Get(rctx schema.RequestContext, table string, id int64) (schema.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.tables[table]
	if !ok {
		return schema.Record{}, schema.ErrUnknownTable
	}
	rec, ok := td.records[id]
	if !ok {
		return schema.Record{}, schema.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemStore) Create(rctx schema.RequestContext, table string, parentID int64, fields map[string]any) (schema.Record, error) {
	m.mu.Lock()
	td, ok := m.tables[table]
	if !ok {
		m.mu.Unlock()
		return schema.Record{}, schema.ErrUnknownTable
	}
	code := schema.AsText(fields["code"])
	if code == "" {
		m.mu.Unlock()
		return schema.Record{}, ErrCodeRequired
	}
	if codeTaken(td, code, 0) {
		m.mu.Unlock()
		return schema.Record{}, fmt.Errorf("create %s %q: %w", table, code, schema.ErrDuplicateCode)
	}

	td.nextID++
	rec := schema.Record{
		ID:        td.nextID,
		Code:      code,
		Fields:    make(map[string]any),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		CreatedBy: m.actors[rctx.AuthToken],
	}
	for _, col := range td.def.Columns {
		if !col.Editable || col.Key == "code" {
			continue
		}
		if v, ok := fields[col.Key]; ok {
			rec.Fields[col.Key] = normalize(col, v)
		}
	}
	if parentID != 0 {
		rec.Fields["parent_id"] = parentID
	}
	td.records[rec.ID] = rec

	m.appendAudit(rctx, schema.AuditCreate, table, rec.ID, map[string]any{"code": code})
	m.saveLocked(table)
	out := cloneRecord(rec)
	m.mu.Unlock()
	return out, nil
}

// Update applies a full old/new diff payload. Only the f_new values are
// applied; the f_old values travel with the payload for the audit entry,
// which keeps the complete field set whether or not a field changed.
func (m *MemStore) Update(rctx schema.RequestContext, table string, id int64, diff schema.DiffPayload) (schema.Record, error) {
	m.mu.Lock()
	td, ok := m.tables[table]
	if !ok {
		m.mu.Unlock()
		return schema.Record{}, schema.ErrUnknownTable
	}
	rec, ok := td.records[id]
	if !ok {
		m.mu.Unlock()
		return schema.Record{}, schema.ErrNotFound
	}

	// The code change is validated before anything is written. A rejected
	// diff must leave the record, its field map and the translations exactly
	// as they were, whatever column order the table definition uses.
	if v, present := diff["code_new"]; present {
		if col, ok := td.def.Column("code"); ok && col.Editable {
			code := schema.AsText(v)
			if code == "" {
				m.mu.Unlock()
				return schema.Record{}, ErrCodeRequired
			}
			if codeTaken(td, code, id) {
				m.mu.Unlock()
				return schema.Record{}, fmt.Errorf("update %s %d: %w", table, id, schema.ErrDuplicateCode)
			}
			rec.Code = code
		}
	}

	// Stored records share their field map with earlier reads of the same
	// entry, so changes go into a fresh map assigned in one step.
	fields := make(map[string]any, len(rec.Fields)+1)
	for k, v := range rec.Fields {
		fields[k] = v
	}
	for _, col := range td.def.Columns {
		if !col.Editable || col.Key == "code" {
			continue
		}
		v, present := diff[col.Key+"_new"]
		if !present {
			continue
		}
		fields[col.Key] = normalize(col, v)

		// Record the editing locale's translation alongside the canonical
		// value.
		if col.Translatable {
			if localeID := int(schema.AsID(diff[schema.DiffKeyLanguageID])); localeID != 0 {
				setTranslation(td, id, localeID, schema.AsText(v))
			}
		}
	}
	rec.Fields = fields
	td.records[id] = rec

	m.appendAudit(rctx, schema.AuditUpdate, table, id, map[string]any(diff))
	m.saveLocked(table)
	out := cloneRecord(rec)
	m.mu.Unlock()
	return out, nil
}

// Delete soft-deletes: the active flag is flipped, the row stays resolvable
// by id. Deletion is rejected while any active record in a registered table
// still references the target.
func (m *MemStore) Delete(rctx schema.RequestContext, table string, id int64) (schema.DeleteOutcome, error) {
	m.mu.Lock()
	td, ok := m.tables[table]
	if !ok {
		m.mu.Unlock()
		return schema.DeleteOutcome{}, schema.ErrUnknownTable
	}
	rec, ok := td.records[id]
	if !ok {
		m.mu.Unlock()
		return schema.DeleteOutcome{}, schema.ErrNotFound
	}

	if by, col := m.referencedBy(table, id); by != "" {
		m.mu.Unlock()
		return schema.DeleteOutcome{
			Status: schema.RejectedReferentialIntegrity,
			Reason: fmt.Sprintf("still referenced by %s.%s", by, col),
		}, nil
	}

	rec.IsActive = false
	td.records[id] = rec
	m.appendAudit(rctx, schema.AuditDelete, table, id, nil)
	m.saveLocked(table)
	m.mu.Unlock()
	return schema.DeleteOutcome{Status: schema.Deleted}, nil
}

func (m *MemStore) ResolveLookup(rctx schema.RequestContext, table string) (schema.LookupTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	td, ok := m.tables[table]
	if !ok {
		return nil, schema.ErrUnknownTable
	}
	nameCol, hasName := td.def.TranslatableColumn()

	out := make(schema.LookupTable, 0, len(td.records))
	for _, rec := range td.records {
		item := schema.LookupItem{ID: rec.ID, Code: rec.Code, IsActive: rec.IsActive}
		if hasName {
			item.Name = schema.AsText(rec.Field(nameCol.Key))
			if byLocale := td.translations[rec.ID]; byLocale != nil {
				if txt, ok := byLocale[rctx.LocaleID]; ok && txt != "" {
					item.Name = txt
				}
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) Translate(rctx schema.RequestContext, table string, id int64, localeID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, ok := m.tables[table]
	if !ok {
		return schema.ErrUnknownTable
	}
	if _, ok := td.records[id]; !ok {
		return schema.ErrNotFound
	}
	setTranslation(td, id, localeID, text)
	m.appendAudit(rctx, schema.AuditTranslate, table, id, map[string]any{"locale_id": localeID, "text": text})
	m.saveLocked(table)
	return nil
}

func (m *MemStore) Audit(rctx schema.RequestContext, table string, recordID int64) ([]schema.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[table]; !ok {
		return nil, schema.ErrUnknownTable
	}
	var out []schema.AuditEntry
	for _, e := range m.audit {
		if e.Table != table {
			continue
		}
		if recordID != 0 && e.RecordID != recordID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// --- internals ---

// referencedBy scans every registered foreign-key column pointing at table
// for an active record holding id. Must be called with m.mu held.
func (m *MemStore) referencedBy(table string, id int64) (refTable, refColumn string) {
	for name, other := range m.tables {
		for _, col := range other.def.Columns {
			if col.Kind != schema.KindID || col.Lookup != table {
				continue
			}
			for _, rec := range other.records {
				if rec.IsActive && schema.AsID(rec.Field(col.Key)) == id {
					return name, col.Key
				}
			}
		}
	}
	return "", ""
}

// appendAudit records an event. Must be called with m.mu held for writing.
func (m *MemStore) appendAudit(rctx schema.RequestContext, action, table string, id int64, detail map[string]any) {
	m.audit = append(m.audit, schema.AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     m.actors[rctx.AuthToken],
		Action:    action,
		Table:     table,
		RecordID:  id,
		Detail:    detail,
	})
	if m.persister != nil {
		auditCopy := make([]schema.AuditEntry, len(m.audit))
		copy(auditCopy, m.audit)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.persister.SaveAudit(auditCopy); err != nil {
				// Next audit event retries with the full trail.
				_ = err
			}
		}()
	}
}

// saveLocked snapshots one table and persists it in the background. Must be
// called with m.mu held.
func (m *MemStore) saveLocked(table string) {
	if m.persister == nil {
		return
	}
	td := m.tables[table]
	snap := snapshotTable(td)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.persister.SaveTable(table, snap)
	}()
}

func snapshotTable(td *tableData) TableSnapshot {
	snap := TableSnapshot{
		NextID:       td.nextID,
		Records:      make([]schema.Record, 0, len(td.records)),
		Translations: make(map[int64]map[int]string, len(td.translations)),
	}
	for _, rec := range td.records {
		snap.Records = append(snap.Records, cloneRecord(rec))
	}
	sort.Slice(snap.Records, func(i, j int) bool { return snap.Records[i].ID < snap.Records[j].ID })
	for id, byLocale := range td.translations {
		cp := make(map[int]string, len(byLocale))
		for k, v := range byLocale {
			cp[k] = v
		}
		snap.Translations[id] = cp
	}
	return snap
}

func setTranslation(td *tableData, id int64, localeID int, text string) {
	if td.translations[id] == nil {
		td.translations[id] = make(map[int]string)
	}
	td.translations[id][localeID] = text
}

func codeTaken(td *tableData, code string, exceptID int64) bool {
	for _, rec := range td.records {
		if rec.ID != exceptID && rec.Code == code {
			return true
		}
	}
	return false
}

func cloneRecord(rec schema.Record) schema.Record {
	if rec.Fields == nil {
		return rec
	}
	fields := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		fields[k] = v
	}
	rec.Fields = fields
	return rec
}

// normalize stores field values in their canonical in-memory form so
// comparisons behave the same whether a value arrived via JSON or directly.
func normalize(col schema.Column, v any) any {
	switch col.Kind {
	case schema.KindID:
		return schema.AsID(v)
	case schema.KindBool:
		return schema.AsBool(v)
	case schema.KindDate, schema.KindText:
		return schema.AsText(v)
	}
	return v
}
