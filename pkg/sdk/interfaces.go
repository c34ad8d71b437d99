// Package sdk provides the client-side library for talking to a refbase
// master-data store. It supports both remote connections over HTTP and a
// local embedded store, behind one composite interface.
package sdk

import (
	"fmt"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
)

// Store-level sentinels, re-exported from schema for callers that only
// import the SDK.
var (
	ErrUnknownTable  = schema.ErrUnknownTable
	ErrNotFound      = schema.ErrNotFound
	ErrDuplicateCode = schema.ErrDuplicateCode
)

// Machine-readable error codes carried on the wire alongside HTTP statuses.
const (
	CodeNotFound             = "not_found"
	CodeDuplicateCode        = "duplicate_code"
	CodeReferentialIntegrity = "referential_integrity"
	CodeValidation           = "validation"
)

// RequestError means the store received the call and rejected it: malformed
// payload, duplicate code, referential-integrity violation.
type RequestError struct {
	Status int
	Code   string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("store rejected request (%d %s): %s", e.Status, e.Code, e.Reason)
}

// Unwrap maps wire error codes back onto the package sentinels, so
// errors.Is works the same against the remote client and the embedded
// store.
func (e *RequestError) Unwrap() error {
	switch e.Code {
	case CodeNotFound:
		return ErrNotFound
	case CodeDuplicateCode:
		return ErrDuplicateCode
	}
	return nil
}

// NetworkError means no usable response was received at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "store unreachable: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// --- Functional Interfaces (Interface Segregation) ---

// Lister lists a table's records, optionally narrowed server-side.
type Lister interface {
	List(rctx schema.RequestContext, table string, params schema.ListParams) ([]schema.Record, error)
}

// Getter fetches one record by id.
type Getter interface {
	Get(rctx schema.RequestContext, table string, id int64) (schema.Record, error)
}

// Mutator performs the create/update/delete cycle. The store assigns ids and
// audit fields on create; Update consumes the full old/new diff payload;
// Delete is soft and returns a tagged outcome.
type Mutator interface {
	Create(rctx schema.RequestContext, table string, parentID int64, fields map[string]any) (schema.Record, error)
	Update(rctx schema.RequestContext, table string, id int64, diff schema.DiffPayload) (schema.Record, error)
	Delete(rctx schema.RequestContext, table string, id int64) (schema.DeleteOutcome, error)
}

// LookupResolver fetches a reference table localized for the request locale.
type LookupResolver interface {
	ResolveLookup(rctx schema.RequestContext, table string) (schema.LookupTable, error)
}

// Translator upserts one locale's text for a record's translatable field.
type Translator interface {
	Translate(rctx schema.RequestContext, table string, id int64, localeID int, text string) error
}

// AuditReader lists the audit trail recorded for one record.
type AuditReader interface {
	Audit(rctx schema.RequestContext, table string, recordID int64) ([]schema.AuditEntry, error)
}

// --- Composite Interface ---

// MasterStore is the persistence collaborator the grid engine drives. Both
// the embedded store and the remote HTTP client implement this contract.
type MasterStore interface {
	Lister
	Getter
	Mutator
	LookupResolver
	Translator
	AuditReader
}

// TableScope pins a table and request context so per-row call sites stay
// short.
type TableScope struct {
	store MasterStore
	table string
	rctx  schema.RequestContext
}

// Scope returns a TableScope over store for one table and request context.
func Scope(store MasterStore, table string, rctx schema.RequestContext) TableScope {
	return TableScope{store: store, table: table, rctx: rctx}
}

func (t TableScope) List(params schema.ListParams) ([]schema.Record, error) {
	return t.store.List(t.rctx, t.table, params)
}

func (t TableScope) Get(id int64) (schema.Record, error) {
	return t.store.Get(t.rctx, t.table, id)
}

func (t TableScope) Create(parentID int64, fields map[string]any) (schema.Record, error) {
	return t.store.Create(t.rctx, t.table, parentID, fields)
}

func (t TableScope) Update(id int64, diff schema.DiffPayload) (schema.Record, error) {
	return t.store.Update(t.rctx, t.table, id, diff)
}

func (t TableScope) Delete(id int64) (schema.DeleteOutcome, error) {
	return t.store.Delete(t.rctx, t.table, id)
}

func (t TableScope) ResolveLookup() (schema.LookupTable, error) {
	return t.store.ResolveLookup(t.rctx, t.table)
}

func (t TableScope) Translate(id int64, localeID int, text string) error {
	return t.store.Translate(t.rctx, t.table, id, localeID, text)
}

func (t TableScope) Audit(recordID int64) ([]schema.AuditEntry, error) {
	return t.store.Audit(t.rctx, t.table, recordID)
}
