// Package grid implements the reusable reference-data grid engine: a
// filter -> sort -> paginate pipeline over records fetched from a master
// store, and the inline edit session that turns user edits into the old/new
// diff payloads the store's audit trail expects.
//
// All pipeline operations are pure and synchronous; only the orchestrator's
// load and mutation intents touch the network.
package grid

import (
	"strings"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// BoolFilter is the tri-state predicate for boolean columns.
type BoolFilter int

const (
	BoolAny BoolFilter = iota
	BoolTrue
	BoolFalse
)

// Filter is one per-column predicate value. The zero Filter imposes no
// constraint. For id columns, ID takes precedence over Text; a non-empty
// Text filters by the resolved display label instead of the raw id.
type Filter struct {
	Text string
	ID   int64
	Bool BoolFilter
}

// TextContains builds a case-insensitive substring filter.
func TextContains(s string) Filter { return Filter{Text: s} }

// IDEquals builds an exact foreign-key filter. Zero means no constraint.
func IDEquals(id int64) Filter { return Filter{ID: id} }

// BoolIs builds a true-only or false-only filter.
func BoolIs(v bool) Filter {
	if v {
		return Filter{Bool: BoolTrue}
	}
	return Filter{Bool: BoolFalse}
}

func (f Filter) empty() bool {
	return f.Text == "" && f.ID == 0 && f.Bool == BoolAny
}

// FilterState maps column keys to predicate values. Absent or zero entries
// impose no constraint; active entries compose with logical AND.
type FilterState map[string]Filter

// Apply returns the records matching every active predicate, preserving the
// input order. It is a pure function of its inputs and is safe to call on
// every keystroke.
func (fs FilterState) Apply(records []schema.Record, table schema.TableDef, lookups map[string]schema.LookupTable, unknown string) []schema.Record {
	if len(fs) == 0 {
		return records
	}
	out := make([]schema.Record, 0, len(records))
	for _, rec := range records {
		if fs.matches(rec, table, lookups, unknown) {
			out = append(out, rec)
		}
	}
	return out
}

func (fs FilterState) matches(rec schema.Record, table schema.TableDef, lookups map[string]schema.LookupTable, unknown string) bool {
	for key, f := range fs {
		if f.empty() {
			continue
		}
		col, ok := table.Column(key)
		if !ok || !col.Filterable {
			continue
		}
		if !matchColumn(rec, col, f, lookups, unknown) {
			return false
		}
	}
	return true
}

func matchColumn(rec schema.Record, col schema.Column, f Filter, lookups map[string]schema.LookupTable, unknown string) bool {
	val := rec.Field(col.Key)
	switch col.Kind {
	case schema.KindID:
		if f.ID != 0 {
			return schema.AsID(val) == f.ID
		}
		if f.Text != "" {
			label := lookups[col.Lookup].Label(schema.AsID(val), unknown)
			return containsFold(label, f.Text)
		}
	case schema.KindBool:
		switch f.Bool {
		case BoolTrue:
			return schema.AsBool(val)
		case BoolFalse:
			return !schema.AsBool(val)
		}
	default:
		if f.Text != "" {
			return containsFold(schema.AsText(val), f.Text)
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
