package ojt

import (
	"fmt"
	"sort"
	"strings"
)

// The portal's error taxonomy. Every operation returns one of these (or a
// wrapped infrastructure error); the HTTP layer translates them to status
// codes and never inspects anything deeper.

// ValidationError carries field-level messages for malformed input.
// Uniqueness duplicates caught before the write are reported here too, so
// the response shape matches what form clients expect.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError ready for Add calls.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Add appends a message for a field.
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

// Err returns the error when any field message was recorded, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// FieldError builds a single-field ValidationError.
func FieldError(field, message string) *ValidationError {
	err := NewValidationError()
	err.Add(field, message)
	return err
}

// ConflictError marks a referential block or a uniqueness race the store
// rejected at write time.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// NotFoundError marks a missing entity.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// AuthorizationError marks an authenticated caller lacking the role or
// ownership an operation requires.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	if e.Message == "" {
		return "forbidden"
	}
	return e.Message
}

// StorageIOError wraps an object-store failure. The owning record mutation
// must not commit when one of these is returned.
type StorageIOError struct {
	Op  string
	Err error
}

func (e *StorageIOError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageIOError) Unwrap() error { return e.Err }
