package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when creating a job whose id is already present
	ErrJobExists = errors.New("job already exists")

	// ErrInvalidDataURI is returned when an embedded image payload is malformed
	ErrInvalidDataURI = errors.New("invalid data uri")
)

// ValidationError describes a rejected submission input. It is surfaced
// synchronously to the caller of Submit, unlike background failures which
// are only visible on the persisted job record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a new validation error for a request field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
