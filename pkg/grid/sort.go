package grid

import (
	"sort"
	"strings"
	"time"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// Direction is the tri-state sort direction.
type Direction int

const (
	DirNone Direction = iota
	DirAsc
	DirDesc
)

// SortSpec is the active sort column and direction. The zero SortSpec means
// original order; DirNone and an empty Field are equivalent.
type SortSpec struct {
	Field     string
	Direction Direction
}

// Toggle cycles the spec for a column click: a different column starts
// ascending; the active column cycles ascending -> descending -> none.
func (s SortSpec) Toggle(column string) SortSpec {
	if s.Field != column {
		return SortSpec{Field: column, Direction: DirAsc}
	}
	switch s.Direction {
	case DirAsc:
		return SortSpec{Field: column, Direction: DirDesc}
	case DirDesc:
		return SortSpec{}
	default:
		return SortSpec{Field: column, Direction: DirAsc}
	}
}

// SortRecords returns the records ordered per spec. DirNone (or an unknown
// column) returns the input as-is, which is the caller's original order.
// The sort is stable: ties keep their prior relative order, so repeated
// sorts on the same state never reshuffle equal rows.
func SortRecords(records []schema.Record, spec SortSpec, table schema.TableDef, lookups map[string]schema.LookupTable, unknown string) []schema.Record {
	if spec.Direction == DirNone || spec.Field == "" {
		return records
	}
	col, ok := table.Column(spec.Field)
	if !ok || !col.Sortable {
		return records
	}
	out := make([]schema.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		c := compareField(out[i], out[j], col, lookups, unknown)
		if spec.Direction == DirDesc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// compareField orders two records on one column: raw values for plain
// columns, resolved display labels for foreign-key columns.
func compareField(a, b schema.Record, col schema.Column, lookups map[string]schema.LookupTable, unknown string) int {
	av, bv := a.Field(col.Key), b.Field(col.Key)
	switch col.Kind {
	case schema.KindID:
		lt := lookups[col.Lookup]
		return strings.Compare(lt.Label(schema.AsID(av), unknown), lt.Label(schema.AsID(bv), unknown))
	case schema.KindBool:
		return boolOrd(schema.AsBool(av)) - boolOrd(schema.AsBool(bv))
	case schema.KindDate:
		return compareDate(av, bv)
	default:
		return strings.Compare(schema.AsText(av), schema.AsText(bv))
	}
}

func boolOrd(b bool) int {
	if b {
		return 1
	}
	return 0
}

// compareDate handles both time.Time values (in-process stores) and their
// RFC 3339 string form (values that travelled through JSON), which sorts
// lexicographically in timestamp order.
func compareDate(av, bv any) int {
	at, aok := av.(time.Time)
	bt, bok := bv.(time.Time)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	}
	return strings.Compare(schema.AsText(av), schema.AsText(bv))
}
