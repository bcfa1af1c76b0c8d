package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrConflict signals a write that collided with concurrent data.
	ErrConflict = errors.New("conflict")
)
