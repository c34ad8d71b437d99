// Package schema defines universal data structures shared by the grid engine,
// the SDK and the store implementations.
package schema

import (
	"encoding/json"
	"time"
)

// ColumnKind identifies how a column's values are compared, filtered and edited.
type ColumnKind string

const (
	KindText ColumnKind = "text"
	KindID   ColumnKind = "id"
	KindBool ColumnKind = "bool"
	KindDate ColumnKind = "date"
)

// Column describes one column of a reference-data table. A table's column
// list is the only per-entity configuration the grid engine needs.
type Column struct {
	Key          string     `json:"key"`
	Kind         ColumnKind `json:"kind"`
	Sortable     bool       `json:"sortable"`
	Filterable   bool       `json:"filterable"`
	Editable     bool       `json:"editable"`
	Required     bool       `json:"required"`
	Translatable bool       `json:"translatable"`
	// Lookup names the reference table that resolves this column's ids to
	// display labels. Only meaningful for KindID columns.
	Lookup string `json:"lookup,omitempty"`
}

// TableDef describes a reference-data table: its name and column descriptors.
type TableDef struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column returns the descriptor for key, if present.
func (t TableDef) Column(key string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// EditableColumns returns the columns an edit session snapshots.
func (t TableDef) EditableColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Editable {
			out = append(out, c)
		}
	}
	return out
}

// TranslatableColumn returns the table's single translatable text column,
// if it has one.
func (t TableDef) TranslatableColumn() (Column, bool) {
	for _, c := range t.Columns {
		if c.Translatable {
			return c, true
		}
	}
	return Column{}, false
}

// Record is a generic reference-data row. The identity is assigned by the
// store and never mutated by clients. Fields holds the per-column values:
// foreign-key ids for KindID columns, free text for KindText, booleans for
// KindBool.
type Record struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code"`
	Fields    map[string]any `json:"fields,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	CreatedBy string         `json:"created_by,omitempty"`
}

// Field returns the value stored under key, also resolving the two
// pseudo-columns every table has ("code" and "is_active").
func (r Record) Field(key string) any {
	switch key {
	case "code":
		return r.Code
	case "is_active":
		return r.IsActive
	}
	if r.Fields == nil {
		return nil
	}
	return r.Fields[key]
}

// AsID normalizes a field value to an int64 foreign-key id. Values that
// travelled through JSON arrive as float64; absent values collapse to 0,
// the "no selection" sentinel.
func AsID(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

// AsBool normalizes a field value to a boolean.
func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AsText normalizes a field value to a string.
func AsText(v any) string {
	s, _ := v.(string)
	return s
}

// LookupItem is one entry of a reference table used to resolve foreign-key
// ids to display labels.
type LookupItem struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"is_active"`
}

// LookupTable is a small, mostly static reference table. Tables hold tens of
// entries, so label resolution is a linear scan.
type LookupTable []LookupItem

// Label resolves an id to its display label: name, falling back to code,
// falling back to the provided unknown placeholder.
func (l LookupTable) Label(id int64, unknown string) string {
	for _, item := range l {
		if item.ID != id {
			continue
		}
		if item.Name != "" {
			return item.Name
		}
		if item.Code != "" {
			return item.Code
		}
		break
	}
	return unknown
}

// Locale identifies one supported content language.
type Locale struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
}

// RequestContext carries the per-call locale and credential state. It is
// threaded explicitly into every store call rather than read from ambient
// storage, so callers stay independently testable.
type RequestContext struct {
	LocaleID  int
	AuthToken string
}

// ListParams narrows a List call server-side. Server-side filtering is a
// performance layer on top of the grid's client-side filters, never a
// replacement for them.
type ListParams struct {
	ActiveOnly bool
}
