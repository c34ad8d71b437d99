package sdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

func testContext() schema.RequestContext {
	return schema.RequestContext{LocaleID: 2, AuthToken: "secret"}
}

func TestConnectPingsTheDaemon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ping" {
			t.Errorf("Expected /api/ping, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	if _, err := Connect(srv.URL); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
}

func TestConnectFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := Connect(srv.URL)
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
}

func TestTablesFetchesDefinitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tables" {
			t.Errorf("Expected /api/tables, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(schema.DefaultCatalog())
	}))
	defer srv.Close()

	defs, err := NewClient(srv.URL).Tables(testContext())
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(defs) != len(schema.DefaultCatalog()) {
		t.Errorf("Expected %d tables, got %d", len(schema.DefaultCatalog()), len(defs))
	}
}

func TestRequestCarriesContextHeaders(t *testing.T) {
	var gotAuth, gotLocale string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLocale = r.Header.Get("X-Locale-Id")
		json.NewEncoder(w).Encode([]schema.Record{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.List(testContext(), "countries", schema.ListParams{}); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
	if gotLocale != "2" {
		t.Errorf("Expected locale header 2, got %q", gotLocale)
	}
}

func TestListActiveOnlyQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]schema.Record{{ID: 1, Code: "DE"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	records, err := c.List(testContext(), "countries", schema.ListParams{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if gotQuery != "active=1" {
		t.Errorf("Expected active=1 query, got %q", gotQuery)
	}
	if len(records) != 1 || records[0].Code != "DE" {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestErrorCodeUnwrapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "record not found", "code": CodeNotFound})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Get(testContext(), "countries", 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound through the wire code, got %v", err)
	}

	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected RequestError, got %T", err)
	}
	if rerr.Status != http.StatusNotFound || rerr.Code != CodeNotFound {
		t.Errorf("Unexpected RequestError: %+v", rerr)
	}
}

func TestDuplicateCodeConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "code already in use", "code": CodeDuplicateCode})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Create(testContext(), "countries", 0, map[string]any{"code": "DE"})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Errorf("Expected ErrDuplicateCode, got %v", err)
	}
}

func TestDeleteConflictBecomesOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "still referenced by document_types.category_id",
			"code":  CodeReferentialIntegrity,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	outcome, err := c.Delete(testContext(), "document_categories", 1)
	if err != nil {
		t.Fatalf("A 409 must not surface as an error, got %v", err)
	}
	if outcome.Status != schema.RejectedReferentialIntegrity {
		t.Errorf("Expected referential rejection, got %v", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Errorf("Rejection should carry the reason")
	}
}

func TestDeleteTransportFailureStaysAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Delete(testContext(), "countries", 1)
	var nerr *NetworkError
	if !errors.As(err, &nerr) {
		t.Errorf("Expected NetworkError, got %v", err)
	}
}

func TestTranslateFallsBackToCreate(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "no translation", "code": CodeNotFound})
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["locale_id"] != float64(2) || body["text"] != "Reisepass" {
			t.Errorf("POST fallback body wrong: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Translate(testContext(), "document_types", 1, 2, "Reisepass"); err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("Expected PUT then POST, got %v", calls)
	}
	if calls[0] != "PUT /api/tables/document_types/records/1/translations/2" ||
		calls[1] != "POST /api/tables/document_types/records/1/translations" {
		t.Errorf("Unexpected call sequence: %v", calls)
	}
}

func TestUpdateSendsDiffPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(schema.Record{ID: 1, Code: "DE"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	diff := schema.DiffPayload{"name_old": "Germany", "name_new": "Deutschland", schema.DiffKeyAllLanguages: 0}
	if _, err := c.Update(testContext(), "countries", 1, diff); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got["name_new"] != "Deutschland" || got["name_old"] != "Germany" {
		t.Errorf("Diff payload did not survive the wire: %v", got)
	}
}
