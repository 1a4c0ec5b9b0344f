package services

import (
	"errors"
	"strings"

	"github.com/cppla/billboard/store"
)

var (
	// ErrNotFound is the store's not-found error, re-exported for handlers.
	ErrNotFound = store.ErrNotFound
	// ErrConflict is returned when a username is already taken.
	ErrConflict = errors.New("username already exists")
	// ErrRoleMissing means a role the service depends on was never seeded.
	ErrRoleMissing = errors.New("required role is not configured")
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError collects every field rejected for a request. It is raised
// before any store call.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	codes := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		codes = append(codes, f.Code)
	}
	return "validation failed: " + strings.Join(codes, ", ")
}

// Has reports whether a field error with code is present.
func (e *ValidationError) Has(code string) bool {
	for _, f := range e.Fields {
		if f.Code == code {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, code, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Code: code, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
