package schema

import "errors"

// Store-level sentinels. They live here so both the store engines and the
// SDK can share them without depending on each other.
var (
	// ErrUnknownTable is returned when a call names a table the store does
	// not serve.
	ErrUnknownTable = errors.New("unknown table")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateCode is returned when a create or update collides with an
	// existing record's code.
	ErrDuplicateCode = errors.New("code already in use")
)
