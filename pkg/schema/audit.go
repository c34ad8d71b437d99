package schema

import "time"

// DiffPayload is the body of an update call. For every editable field f it
// carries both f_old and f_new, even when they are equal: the audit log
// distinguishes a no-op update from an omitted field and expects the former.
type DiffPayload map[string]any

// Reserved diff keys alongside the per-field old/new pairs.
const (
	DiffKeyAllLanguages = "update_all_languages"
	DiffKeyLanguageID   = "language_id"
)

// OldValue returns the pre-edit value recorded for field.
func (d DiffPayload) OldValue(field string) any { return d[field+"_old"] }

// NewValue returns the post-edit value recorded for field.
func (d DiffPayload) NewValue(field string) any { return d[field+"_new"] }

// PropagateAllLanguages reports whether the update requested translation
// propagation across every supported locale.
func (d DiffPayload) PropagateAllLanguages() bool {
	return AsID(d[DiffKeyAllLanguages]) == 1
}

// DeleteStatus tags the outcome of a soft delete.
type DeleteStatus int

const (
	// Deleted means the record's active flag was flipped off.
	Deleted DeleteStatus = iota
	// RejectedReferentialIntegrity means the record is still referenced and
	// cannot be deactivated.
	RejectedReferentialIntegrity
	// RejectedOther covers every other server-side rejection.
	RejectedOther
)

// DeleteOutcome is the tagged result of a delete call, so callers can tell
// "still referenced" apart from generic failure.
type DeleteOutcome struct {
	Status DeleteStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// AuditEntry is one event in the store's audit trail. Update entries keep
// the full old/new field set from the diff payload.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"`
	Action    string         `json:"action"`
	Table     string         `json:"table"`
	RecordID  int64          `json:"record_id"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Audit actions.
const (
	AuditCreate    = "create"
	AuditUpdate    = "update"
	AuditDelete    = "delete"
	AuditTranslate = "translate"
)
