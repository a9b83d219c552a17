// Package apperr defines the error kinds shared by the library services.
//
// Every domain error wraps exactly one kind, so callers branch with errors.Is
// against the kind and the HTTP layer maps kinds to status codes.
package apperr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with message msg that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &kindError{msg: fmt.Sprintf(format, args...), kind: kind}
}

// Validation is shorthand for a validation error.
func Validation(format string, args ...any) error {
	return Newf(ErrValidation, format, args...)
}

// IsDuplicateKey reports whether err is a unique-constraint violation
// from either supported storage driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// FromDB maps storage errors onto kinds: missing rows become NotFound and
// unique-constraint violations are replaced by conflict, which should wrap
// ErrConflict. Other errors are returned wrapped with op.
func FromDB(err error, op string, conflict error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Newf(ErrNotFound, "%s: record not found", op)
	case IsDuplicateKey(err):
		return conflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Kind returns the kind sentinel err wraps, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrUnauthorized, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
