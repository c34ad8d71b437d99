package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS records (
	tbl        TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	code       TEXT    NOT NULL,
	fields     TEXT    NOT NULL DEFAULT '{}',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TEXT    NOT NULL,
	created_by TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (tbl, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_records_code ON records (tbl, code);

CREATE TABLE IF NOT EXISTS translations (
	tbl       TEXT    NOT NULL,
	record_id INTEGER NOT NULL,
	locale_id INTEGER NOT NULL,
	txt       TEXT    NOT NULL,
	PRIMARY KEY (tbl, record_id, locale_id)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id        TEXT PRIMARY KEY,
	ts        TEXT    NOT NULL,
	actor     TEXT    NOT NULL DEFAULT '',
	action    TEXT    NOT NULL,
	tbl       TEXT    NOT NULL,
	record_id INTEGER NOT NULL,
	detail    TEXT
);
`

// SQLStore is the SQL-backed master-data engine, sharing the MemStore's
// contract. Writes are serialized: sqlite allows a single writer.
type SQLStore struct {
	db *sql.DB
	mu sync.Mutex // serializes mutating operations

	defMu  sync.RWMutex
	defs   map[string]schema.TableDef
	actors map[string]string
}

// OpenSQL opens (and if needed initializes) a sqlite-backed store at path.
func OpenSQL(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLStore{
		db:     db,
		defs:   make(map[string]schema.TableDef),
		actors: make(map[string]string),
	}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Register adds the table definitions the store serves.
func (s *SQLStore) Register(defs ...schema.TableDef) {
	s.defMu.Lock()
	defer s.defMu.Unlock()
	for _, def := range defs {
		s.defs[def.Name] = def
	}
}

// SetActor associates an auth token with an actor name for audit entries.
func (s *SQLStore) SetActor(token, actor string) {
	s.defMu.Lock()
	s.actors[token] = actor
	s.defMu.Unlock()
}

func (s *SQLStore) def(table string) (schema.TableDef, bool) {
	s.defMu.RLock()
	defer s.defMu.RUnlock()
	def, ok := s.defs[table]
	return def, ok
}

func (s *SQLStore) actor(token string) string {
	s.defMu.RLock()
	defer s.defMu.RUnlock()
	return s.actors[token]
}

// --- sdk.MasterStore ---

func (s *SQLStore) List(rctx schema.RequestContext, table string, params schema.ListParams) ([]schema.Record, error) {
	if _, ok := s.def(table); !ok {
		return nil, schema.ErrUnknownTable
	}
	query := `SELECT id, code, fields, is_active, created_at, created_by FROM records WHERE tbl = ?`
	args := []any{table}
	if params.ActiveOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Get(rctx schema.RequestContext, table string, id int64) (schema.Record, error) {
	if _, ok := s.def(table); !ok {
		return schema.Record{}, schema.ErrUnknownTable
	}
	row := s.db.QueryRow(
		`SELECT id, code, fields, is_active, created_at, created_by FROM records WHERE tbl = ? AND id = ?`,
		table, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return schema.Record{}, schema.ErrNotFound
	}
	return rec, err
}

func (s *SQLStore) Create(rctx schema.RequestContext, table string, parentID int64, fields map[string]any) (schema.Record, error) {
	def, ok := s.def(table)
	if !ok {
		return schema.Record{}, schema.ErrUnknownTable
	}
	code := schema.AsText(fields["code"])
	if code == "" {
		return schema.Record{}, ErrCodeRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	taken, err := s.codeTaken(table, code, 0)
	if err != nil {
		return schema.Record{}, err
	}
	if taken {
		return schema.Record{}, fmt.Errorf("create %s %q: %w", table, code, schema.ErrDuplicateCode)
	}

	rec := schema.Record{
		Code:      code,
		Fields:    make(map[string]any),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		CreatedBy: s.actor(rctx.AuthToken),
	}
	for _, col := range def.Columns {
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

	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE tbl = ?`, table).Scan(&rec.ID); err != nil {
		return schema.Record{}, err
	}
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return schema.Record{}, err
	}
	_, err = s.db.Exec(
		`INSERT INTO records (tbl, id, code, fields, is_active, created_at, created_by) VALUES (?, ?, ?, ?, 1, ?, ?)`,
		table, rec.ID, rec.Code, string(fieldsJSON), rec.CreatedAt.Format(time.RFC3339Nano), rec.CreatedBy)
	if err != nil {
		return schema.Record{}, err
	}
	s.writeAudit(rctx, schema.AuditCreate, table, rec.ID, map[string]any{"code": code})
	return rec, nil
}

func (s *SQLStore) Update(rctx schema.RequestContext, table string, id int64, diff schema.DiffPayload) (schema.Record, error) {
	def, ok := s.def(table)
	if !ok {
		return schema.Record{}, schema.ErrUnknownTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.Get(rctx, table, id)
	if err != nil {
		return schema.Record{}, err
	}

	// Validate the code change before touching any row; a rejected diff must
	// not leave fields or translations behind, whatever the column order.
	if v, present := diff["code_new"]; present {
		if col, ok := def.Column("code"); ok && col.Editable {
			code := schema.AsText(v)
			if code == "" {
				return schema.Record{}, ErrCodeRequired
			}
			taken, err := s.codeTaken(table, code, id)
			if err != nil {
				return schema.Record{}, err
			}
			if taken {
				return schema.Record{}, fmt.Errorf("update %s %d: %w", table, id, schema.ErrDuplicateCode)
			}
			rec.Code = code
		}
	}

	type pendingTranslation struct {
		localeID int
		text     string
	}
	var translations []pendingTranslation
	if rec.Fields == nil {
		rec.Fields = make(map[string]any)
	}
	for _, col := range def.Columns {
		if !col.Editable || col.Key == "code" {
			continue
		}
		v, present := diff[col.Key+"_new"]
		if !present {
			continue
		}
		rec.Fields[col.Key] = normalize(col, v)
		if col.Translatable {
			if localeID := int(schema.AsID(diff[schema.DiffKeyLanguageID])); localeID != 0 {
				translations = append(translations, pendingTranslation{localeID, schema.AsText(v)})
			}
		}
	}

	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return schema.Record{}, err
	}

	// Record and translation writes land in one transaction.
	tx, err := s.db.Begin()
	if err != nil {
		return schema.Record{}, err
	}
	if _, err := tx.Exec(`UPDATE records SET code = ?, fields = ? WHERE tbl = ? AND id = ?`,
		rec.Code, string(fieldsJSON), table, id); err != nil {
		tx.Rollback()
		return schema.Record{}, err
	}
	for _, tr := range translations {
		if _, err := tx.Exec(
			`INSERT INTO translations (tbl, record_id, locale_id, txt) VALUES (?, ?, ?, ?)
			 ON CONFLICT (tbl, record_id, locale_id) DO UPDATE SET txt = excluded.txt`,
			table, id, tr.localeID, tr.text); err != nil {
			tx.Rollback()
			return schema.Record{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return schema.Record{}, err
	}
	s.writeAudit(rctx, schema.AuditUpdate, table, id, map[string]any(diff))
	return rec, nil
}

func (s *SQLStore) Delete(rctx schema.RequestContext, table string, id int64) (schema.DeleteOutcome, error) {
	if _, ok := s.def(table); !ok {
		return schema.DeleteOutcome{}, schema.ErrUnknownTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(rctx, table, id); err != nil {
		return schema.DeleteOutcome{}, err
	}
	if by, col, err := s.referencedBy(table, id); err != nil {
		return schema.DeleteOutcome{}, err
	} else if by != "" {
		return schema.DeleteOutcome{
			Status: schema.RejectedReferentialIntegrity,
			Reason: fmt.Sprintf("still referenced by %s.%s", by, col),
		}, nil
	}

	if _, err := s.db.Exec(`UPDATE records SET is_active = 0 WHERE tbl = ? AND id = ?`, table, id); err != nil {
		return schema.DeleteOutcome{}, err
	}
	s.writeAudit(rctx, schema.AuditDelete, table, id, nil)
	return schema.DeleteOutcome{Status: schema.Deleted}, nil
}

func (s *SQLStore) ResolveLookup(rctx schema.RequestContext, table string) (schema.LookupTable, error) {
	def, ok := s.def(table)
	if !ok {
		return nil, schema.ErrUnknownTable
	}
	nameCol, hasName := def.TranslatableColumn()

	records, err := s.List(rctx, table, schema.ListParams{})
	if err != nil {
		return nil, err
	}
	out := make(schema.LookupTable, 0, len(records))
	for _, rec := range records {
		item := schema.LookupItem{ID: rec.ID, Code: rec.Code, IsActive: rec.IsActive}
		if hasName {
			item.Name = schema.AsText(rec.Field(nameCol.Key))
			var txt string
			err := s.db.QueryRow(
				`SELECT txt FROM translations WHERE tbl = ? AND record_id = ? AND locale_id = ?`,
				table, rec.ID, rctx.LocaleID).Scan(&txt)
			if err == nil && txt != "" {
				item.Name = txt
			} else if err != nil && err != sql.ErrNoRows {
				return nil, err
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *SQLStore) Translate(rctx schema.RequestContext, table string, id int64, localeID int, text string) error {
	if _, ok := s.def(table); !ok {
		return schema.ErrUnknownTable
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(rctx, table, id); err != nil {
		return err
	}
	if err := s.upsertTranslation(table, id, localeID, text); err != nil {
		return err
	}
	s.writeAudit(rctx, schema.AuditTranslate, table, id, map[string]any{"locale_id": localeID, "text": text})
	return nil
}

func (s *SQLStore) Audit(rctx schema.RequestContext, table string, recordID int64) ([]schema.AuditEntry, error) {
	if _, ok := s.def(table); !ok {
		return nil, schema.ErrUnknownTable
	}
	query := `SELECT id, ts, actor, action, tbl, record_id, detail FROM audit_log WHERE tbl = ?`
	args := []any{table}
	if recordID != 0 {
		query += ` AND record_id = ?`
		args = append(args, recordID)
	}
	query += ` ORDER BY ts`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.AuditEntry
	for rows.Next() {
		var e schema.AuditEntry
		var ts string
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.Action, &e.Table, &e.RecordID, &detail); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- internals ---

func (s *SQLStore) codeTaken(table, code string, exceptID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE tbl = ? AND code = ? AND id != ?`,
		table, code, exceptID).Scan(&n)
	return n > 0, err
}

func (s *SQLStore) referencedBy(table string, id int64) (refTable, refColumn string, err error) {
	s.defMu.RLock()
	defer s.defMu.RUnlock()
	for name, def := range s.defs {
		for _, col := range def.Columns {
			if col.Kind != schema.KindID || col.Lookup != table {
				continue
			}
			// Fields is a JSON object; the fk id is stored as a number.
			var n int
			err := s.db.QueryRow(
				`SELECT COUNT(*) FROM records WHERE tbl = ? AND is_active = 1 AND json_extract(fields, ?) = ?`,
				name, "$."+col.Key, id).Scan(&n)
			if err != nil {
				return "", "", err
			}
			if n > 0 {
				return name, col.Key, nil
			}
		}
	}
	return "", "", nil
}

func (s *SQLStore) upsertTranslation(table string, id int64, localeID int, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO translations (tbl, record_id, locale_id, txt) VALUES (?, ?, ?, ?)
		 ON CONFLICT (tbl, record_id, locale_id) DO UPDATE SET txt = excluded.txt`,
		table, id, localeID, text)
	return err
}

func (s *SQLStore) writeAudit(rctx schema.RequestContext, action, table string, id int64, detail map[string]any) {
	var detailJSON []byte
	if detail != nil {
		detailJSON, _ = json.Marshal(detail)
	}
	_, _ = s.db.Exec(
		`INSERT INTO audit_log (id, ts, actor, action, tbl, record_id, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UTC().Format(time.RFC3339Nano), s.actor(rctx.AuthToken),
		action, table, id, string(detailJSON))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (schema.Record, error) {
	var rec schema.Record
	var fieldsJSON, createdAt string
	var active int
	if err := row.Scan(&rec.ID, &rec.Code, &fieldsJSON, &active, &createdAt, &rec.CreatedBy); err != nil {
		return schema.Record{}, err
	}
	rec.IsActive = active == 1
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if fieldsJSON != "" && fieldsJSON != "{}" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return schema.Record{}, err
		}
	}
	return rec, nil
}
