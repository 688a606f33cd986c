package domain

import "errors"

var (
	// ErrValidation marks malformed or semantically invalid input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for a record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation rejected by the record's current state.
	ErrConflict = errors.New("conflict")
)
