package schema

import (
	"encoding/json"
	"testing"
)

func TestFieldResolvesPseudoColumns(t *testing.T) {
	rec := Record{ID: 7, Code: "DE", IsActive: true, Fields: map[string]any{"name": "Germany"}}

	if got := rec.Field("code"); got != "DE" {
		t.Errorf("Expected code DE, got %v", got)
	}
	if got := rec.Field("is_active"); got != true {
		t.Errorf("Expected is_active true, got %v", got)
	}
	if got := rec.Field("name"); got != "Germany" {
		t.Errorf("Expected name Germany, got %v", got)
	}
	if got := rec.Field("missing"); got != nil {
		t.Errorf("Absent field should be nil, got %v", got)
	}
}

func TestAsIDNormalizesNumericForms(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{int64(5), 5},
		{5, 5},
		{float64(5), 5},
		{json.Number("5"), 5},
		{nil, 0},
		{"junk", 0},
	}
	for _, c := range cases {
		if got := AsID(c.in); got != c.want {
			t.Errorf("AsID(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestLookupLabelFallbackChain(t *testing.T) {
	table := LookupTable{
		{ID: 1, Code: "IDENTITY", Name: "Identity"},
		{ID: 2, Code: "LEGAL"},
	}

	if got := table.Label(1, "(unknown)"); got != "Identity" {
		t.Errorf("Expected the name, got %q", got)
	}
	// No name, fall back to the code.
	if got := table.Label(2, "(unknown)"); got != "LEGAL" {
		t.Errorf("Expected the code, got %q", got)
	}
	if got := table.Label(99, "(unknown)"); got != "(unknown)" {
		t.Errorf("Expected the placeholder, got %q", got)
	}

	var empty LookupTable
	if got := empty.Label(1, "(unknown)"); got != "(unknown)" {
		t.Errorf("A nil table should resolve to the placeholder, got %q", got)
	}
}

func TestTableDefHelpers(t *testing.T) {
	defs := DefaultCatalog()

	var docTypes TableDef
	for _, def := range defs {
		if def.Name == "document_types" {
			docTypes = def
		}
	}
	if docTypes.Name == "" {
		t.Fatal("Catalog should include document_types")
	}

	col, ok := docTypes.Column("category_id")
	if !ok || col.Lookup != "document_categories" {
		t.Errorf("category_id should look up document_categories, got %+v", col)
	}

	editable := docTypes.EditableColumns()
	keys := make(map[string]bool, len(editable))
	for _, col := range editable {
		keys[col.Key] = true
	}
	if !keys["code"] || !keys["name"] || !keys["category_id"] || keys["is_active"] {
		t.Errorf("Unexpected editable set: %v", keys)
	}

	name, ok := docTypes.TranslatableColumn()
	if !ok || name.Key != "name" {
		t.Errorf("Expected name as the translatable column, got %+v", name)
	}
}

func TestDiffPayloadHelpers(t *testing.T) {
	diff := DiffPayload{
		"name_old":          "Germany",
		"name_new":          "Deutschland",
		DiffKeyAllLanguages: 1,
		DiffKeyLanguageID:   2,
	}
	if diff.OldValue("name") != "Germany" || diff.NewValue("name") != "Deutschland" {
		t.Errorf("Old/new accessors broken: %v", diff)
	}
	if !diff.PropagateAllLanguages() {
		t.Errorf("Expected propagation flag set")
	}
	delete(diff, DiffKeyAllLanguages)
	if diff.PropagateAllLanguages() {
		t.Errorf("Missing flag should read as false")
	}
}
