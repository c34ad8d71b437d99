package grid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrEditInProgress is returned when starting an edit while another
	// session is open and concurrent edits are disabled.
	ErrEditInProgress = errors.New("an edit session is already open")
	// ErrNoSession is returned when an edit intent targets a record with no
	// open session.
	ErrNoSession = errors.New("no edit session for record")
	// ErrBusy is returned when a mutating call arrives while another one is
	// still in flight.
	ErrBusy = errors.New("a mutating request is already in flight")
	// ErrNotLoaded is returned when an edit intent targets a record that is
	// not part of the loaded collection.
	ErrNotLoaded = errors.New("record not in loaded collection")
	// ErrFieldNotEditable is returned when a draft update targets a column
	// that is not editable.
	ErrFieldNotEditable = errors.New("field is not editable")
	// ErrNoDeletePending is returned when a delete is confirmed without a
	// prior delete request.
	ErrNoDeletePending = errors.New("no delete pending")
)

// FieldError describes one field that failed pre-submission validation.
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError reports the fields that failed local validation. It never
// reaches the network: a commit that fails validation makes no store call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// PartialLoadError reports lookup tables that failed to load while the rest
// of the grid loaded fine. The grid stays usable with unknown labels for the
// failed tables.
type PartialLoadError struct {
	Failed map[string]error
}

func (e *PartialLoadError) Error() string {
	tables := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return fmt.Sprintf("failed to load lookup tables: %s", strings.Join(tables, ", "))
}
