package store

import (
	"errors"
	"testing"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

func rctxFor(locale int) schema.RequestContext {
	return schema.RequestContext{LocaleID: locale, AuthToken: "tok"}
}

func newTestStore(t *testing.T) *MemStore {
	t.Helper()
	m := NewMemStore(nil)
	m.Register(schema.DefaultCatalog()...)
	m.SetActor("tok", "alice")
	return m
}

func mustCreate(t *testing.T, m *MemStore, table string, fields map[string]any) schema.Record {
	t.Helper()
	rec, err := m.Create(rctxFor(1), table, 0, fields)
	if err != nil {
		t.Fatalf("Create %s failed: %v", table, err)
	}
	return rec
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	m := newTestStore(t)

	first := mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})
	second := mustCreate(t, m, "countries", map[string]any{"code": "FR", "name": "France"})

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("Expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if !first.IsActive {
		t.Errorf("New records should be active")
	}
	if first.CreatedBy != "alice" {
		t.Errorf("Expected actor alice, got %q", first.CreatedBy)
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	m := newTestStore(t)
	mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})

	_, err := m.Create(rctxFor(1), "countries", 0, map[string]any{"code": "DE", "name": "Denmark?"})
	if !errors.Is(err, schema.ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode, got %v", err)
	}
}

func TestCreateRequiresCode(t *testing.T) {
	m := newTestStore(t)
	_, err := m.Create(rctxFor(1), "countries", 0, map[string]any{"name": "Nowhere"})
	if !errors.Is(err, ErrCodeRequired) {
		t.Errorf("Expected ErrCodeRequired, got %v", err)
	}
}

func TestUnknownTable(t *testing.T) {
	m := newTestStore(t)
	if _, err := m.List(rctxFor(1), "nope", schema.ListParams{}); !errors.Is(err, schema.ErrUnknownTable) {
		t.Errorf("Expected ErrUnknownTable, got %v", err)
	}
}

func TestUpdateAppliesNewValuesAndAuditsFullDiff(t *testing.T) {
	m := newTestStore(t)
	rec := mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})

	diff := schema.DiffPayload{
		"code_old": "DE", "code_new": "DE",
		"name_old": "Germany", "name_new": "Federal Republic of Germany",
		schema.DiffKeyAllLanguages: 0,
	}
	updated, err := m.Update(rctxFor(1), "countries", rec.ID, diff)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := schema.AsText(updated.Field("name")); got != "Federal Republic of Germany" {
		t.Errorf("Expected updated name, got %q", got)
	}

	entries, err := m.Audit(rctxFor(1), "countries", rec.ID)
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	// Create + update.
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}
	update := entries[1]
	if update.Action != schema.AuditUpdate || update.Actor != "alice" {
		t.Errorf("Unexpected audit entry: %+v", update)
	}
	if update.Detail["name_old"] != "Germany" || update.Detail["name_new"] != "Federal Republic of Germany" {
		t.Errorf("Audit detail should carry the old/new pair, got %v", update.Detail)
	}
	if _, ok := update.Detail["code_old"]; !ok {
		t.Errorf("Audit detail should carry unchanged fields too")
	}
}

func TestUpdateDuplicateCodeRejected(t *testing.T) {
	m := newTestStore(t)
	mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})
	rec := mustCreate(t, m, "countries", map[string]any{"code": "FR", "name": "France"})

	diff := schema.DiffPayload{"code_old": "FR", "code_new": "DE"}
	if _, err := m.Update(rctxFor(1), "countries", rec.ID, diff); !errors.Is(err, schema.ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode, got %v", err)
	}
}

func TestUpdateRejectionLeavesNoPartialState(t *testing.T) {
	// The code column comes after the translatable one here, so the
	// duplicate check must run before any field or translation write.
	m := NewMemStore(nil)
	m.Register(schema.TableDef{
		Name: "units",
		Columns: []schema.Column{
			{Key: "name", Kind: schema.KindText, Filterable: true, Editable: true, Required: true, Translatable: true},
			{Key: "code", Kind: schema.KindText, Filterable: true, Editable: true, Required: true},
			{Key: "is_active", Kind: schema.KindBool},
		},
	})
	m.SetActor("tok", "alice")

	if _, err := m.Create(rctxFor(1), "units", 0, map[string]any{"code": "KG", "name": "Kilogram"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := m.Create(rctxFor(1), "units", 0, map[string]any{"code": "LB", "name": "Pound"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	diff := schema.DiffPayload{
		"name_old": "Pound", "name_new": "Pfund",
		"code_old": "LB", "code_new": "KG",
		schema.DiffKeyAllLanguages: 0,
		schema.DiffKeyLanguageID:   2,
	}
	if _, err := m.Update(rctxFor(2), "units", rec.ID, diff); !errors.Is(err, schema.ErrDuplicateCode) {
		t.Fatalf("Expected ErrDuplicateCode, got %v", err)
	}

	got, _ := m.Get(rctxFor(1), "units", rec.ID)
	if got.Code != "LB" || schema.AsText(got.Field("name")) != "Pound" {
		t.Errorf("Rejected update must leave the record untouched, got code %q name %q",
			got.Code, schema.AsText(got.Field("name")))
	}
	de, _ := m.ResolveLookup(rctxFor(2), "units")
	for _, item := range de {
		if item.ID == rec.ID && item.Name != "Pound" {
			t.Errorf("Rejected update must not persist a translation, got %q", item.Name)
		}
	}
}

func TestDeleteIsSoft(t *testing.T) {
	m := newTestStore(t)
	rec := mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})

	outcome, err := m.Delete(rctxFor(1), "countries", rec.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if outcome.Status != schema.Deleted {
		t.Fatalf("Expected Deleted, got %v", outcome.Status)
	}

	// Still resolvable by id, just inactive.
	got, err := m.Get(rctxFor(1), "countries", rec.ID)
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if got.IsActive {
		t.Errorf("Deleted record should be inactive")
	}

	active, _ := m.List(rctxFor(1), "countries", schema.ListParams{ActiveOnly: true})
	if len(active) != 0 {
		t.Errorf("ActiveOnly list should hide the deleted record, got %d", len(active))
	}
	all, _ := m.List(rctxFor(1), "countries", schema.ListParams{})
	if len(all) != 1 {
		t.Errorf("Unfiltered list should keep the row, got %d", len(all))
	}
}

func TestDeleteRejectedWhileReferenced(t *testing.T) {
	m := newTestStore(t)
	cat := mustCreate(t, m, "document_categories", map[string]any{"code": "IDENTITY", "name": "Identity"})
	mustCreate(t, m, "document_types", map[string]any{"code": "PASSPORT", "name": "Passport", "category_id": cat.ID})

	outcome, err := m.Delete(rctxFor(1), "document_categories", cat.ID)
	if err != nil {
		t.Fatalf("Rejection must not be an error, got %v", err)
	}
	if outcome.Status != schema.RejectedReferentialIntegrity {
		t.Fatalf("Expected referential rejection, got %v", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Errorf("Rejection should name the referencing table")
	}

	got, _ := m.Get(rctxFor(1), "document_categories", cat.ID)
	if !got.IsActive {
		t.Errorf("Rejected delete must leave the record active")
	}
}

func TestDeleteAllowedAfterReferenceRemoved(t *testing.T) {
	m := newTestStore(t)
	cat := mustCreate(t, m, "document_categories", map[string]any{"code": "IDENTITY", "name": "Identity"})
	doc := mustCreate(t, m, "document_types", map[string]any{"code": "PASSPORT", "name": "Passport", "category_id": cat.ID})

	if _, err := m.Delete(rctxFor(1), "document_types", doc.ID); err != nil {
		t.Fatalf("Deleting the referencing record failed: %v", err)
	}

	outcome, err := m.Delete(rctxFor(1), "document_categories", cat.ID)
	if err != nil || outcome.Status != schema.Deleted {
		t.Errorf("Delete should succeed once only inactive references remain, got %v %v", outcome.Status, err)
	}
}

func TestLookupPrefersLocaleTranslation(t *testing.T) {
	m := newTestStore(t)
	rec := mustCreate(t, m, "document_categories", map[string]any{"code": "IDENTITY", "name": "Identity"})

	if err := m.Translate(rctxFor(1), "document_categories", rec.ID, 2, "Identität"); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}

	en, _ := m.ResolveLookup(rctxFor(1), "document_categories")
	if en[0].Name != "Identity" {
		t.Errorf("Locale 1 should see the canonical name, got %q", en[0].Name)
	}
	de, _ := m.ResolveLookup(rctxFor(2), "document_categories")
	if de[0].Name != "Identität" {
		t.Errorf("Locale 2 should see its translation, got %q", de[0].Name)
	}
	// No translation for locale 3, fall back to canonical.
	fr, _ := m.ResolveLookup(rctxFor(3), "document_categories")
	if fr[0].Name != "Identity" {
		t.Errorf("Missing translation should fall back, got %q", fr[0].Name)
	}
}

func TestUpdateRecordsEditingLocaleTranslation(t *testing.T) {
	m := newTestStore(t)
	rec := mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})

	diff := schema.DiffPayload{
		"code_old": "DE", "code_new": "DE",
		"name_old": "Germany", "name_new": "Deutschland",
		schema.DiffKeyAllLanguages: 1,
		schema.DiffKeyLanguageID:   2,
	}
	if _, err := m.Update(rctxFor(2), "countries", rec.ID, diff); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	de, _ := m.ResolveLookup(rctxFor(2), "countries")
	if de[0].Name != "Deutschland" {
		t.Errorf("Editing locale should get the new text as its translation, got %q", de[0].Name)
	}
}

func TestTranslateUnknownRecord(t *testing.T) {
	m := newTestStore(t)
	if err := m.Translate(rctxFor(1), "countries", 42, 2, "x"); !errors.Is(err, schema.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetClonesFields(t *testing.T) {
	m := newTestStore(t)
	rec := mustCreate(t, m, "countries", map[string]any{"code": "DE", "name": "Germany"})

	got, _ := m.Get(rctxFor(1), "countries", rec.ID)
	got.Fields["name"] = "tampered"

	again, _ := m.Get(rctxFor(1), "countries", rec.ID)
	if schema.AsText(again.Field("name")) != "Germany" {
		t.Errorf("Mutating a returned record leaked into the store")
	}
}
