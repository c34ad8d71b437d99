package grid

import (
	"github.com/google/uuid"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// EditSession is the inline-edit state machine for one record. It snapshots
// the pristine editable fields when the edit starts, tracks the in-progress
// draft, and on commit produces the old/new diff payload the audit trail
// expects. A session holds no network state: cancelling it is free.
type EditSession struct {
	ID       string
	RecordID int64
	Pristine map[string]any
	Draft    map[string]any
	// PropagateAllLocales requests a best-effort translation upsert for
	// every supported locale when the translatable field changed.
	PropagateAllLocales bool

	table schema.TableDef
}

// NewEditSession snapshots every editable field of rec into both the
// pristine and draft maps.
func NewEditSession(rec schema.Record, table schema.TableDef) *EditSession {
	s := &EditSession{
		ID:       uuid.NewString(),
		RecordID: rec.ID,
		Pristine: make(map[string]any),
		Draft:    make(map[string]any),
		table:    table,
	}
	for _, col := range table.EditableColumns() {
		v := rec.Field(col.Key)
		s.Pristine[col.Key] = v
		s.Draft[col.Key] = v
	}
	return s
}

// Update replaces one field in the draft. The pristine snapshot is never
// touched.
func (s *EditSession) Update(field string, value any) error {
	col, ok := s.table.Column(field)
	if !ok || !col.Editable {
		return ErrFieldNotEditable
	}
	s.Draft[field] = value
	return nil
}

// Changed reports whether the draft value of field differs from pristine.
func (s *EditSession) Changed(field string) bool {
	col, ok := s.table.Column(field)
	if !ok {
		return false
	}
	return !fieldEqual(col, s.Pristine[field], s.Draft[field])
}

// TranslatableChanged returns the table's translatable column when the
// session mutated it.
func (s *EditSession) TranslatableChanged() (schema.Column, bool) {
	col, ok := s.table.TranslatableColumn()
	if !ok {
		return schema.Column{}, false
	}
	return col, s.Changed(col.Key)
}

// Commit validates the draft and converts it into a diff payload. For every
// editable field f it emits f_old and f_new, equal or not; the audit system
// treats an omitted field differently from a no-op update. Validation
// failure returns a *ValidationError and produces no payload.
func (s *EditSession) Commit(localeID int) (schema.DiffPayload, error) {
	if verr := ValidateFields(s.table, s.Draft); verr != nil {
		return nil, verr
	}
	diff := make(schema.DiffPayload, 2*len(s.Pristine)+2)
	for _, col := range s.table.EditableColumns() {
		diff[col.Key+"_old"] = s.Pristine[col.Key]
		diff[col.Key+"_new"] = s.Draft[col.Key]
	}
	if s.PropagateAllLocales {
		diff[schema.DiffKeyAllLanguages] = 1
		diff[schema.DiffKeyLanguageID] = localeID
	} else {
		diff[schema.DiffKeyAllLanguages] = 0
	}
	return diff, nil
}

// ValidateFields runs the pre-submission checks for a field set: required
// text present, required foreign keys selected. Returns nil when clean.
func ValidateFields(table schema.TableDef, fields map[string]any) *ValidationError {
	var verr ValidationError
	for _, col := range table.Columns {
		if !col.Editable || !col.Required {
			continue
		}
		v := fields[col.Key]
		switch col.Kind {
		case schema.KindID:
			if schema.AsID(v) == 0 {
				verr.Fields = append(verr.Fields, FieldError{Field: col.Key, Reason: "selection required"})
			}
		default:
			if schema.AsText(v) == "" {
				verr.Fields = append(verr.Fields, FieldError{Field: col.Key, Reason: "must not be empty"})
			}
		}
	}
	if len(verr.Fields) > 0 {
		return &verr
	}
	return nil
}

// fieldEqual compares two field values under the column's kind, so an int64
// id and its float64 JSON form compare equal.
func fieldEqual(col schema.Column, a, b any) bool {
	switch col.Kind {
	case schema.KindID:
		return schema.AsID(a) == schema.AsID(b)
	case schema.KindBool:
		return schema.AsBool(a) == schema.AsBool(b)
	default:
		return schema.AsText(a) == schema.AsText(b)
	}
}
