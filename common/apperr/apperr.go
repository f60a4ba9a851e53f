package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error
type Kind string

const (
	// KindValidation represents malformed or missing input fields
	KindValidation Kind = "validation"
	// KindNotFound represents a missing Person/Relationship/Tree/Suggestion
	KindNotFound Kind = "not_found"
	// KindConflict represents uniqueness violations, double-accepts and
	// immutable-field mutations
	KindConflict Kind = "conflict"
	// KindForbidden represents an insufficient tree role
	KindForbidden Kind = "forbidden"
	// KindPartialImport represents a single failed record inside an
	// otherwise successful import; it is logged and counted, never
	// escalated to a whole-request failure
	KindPartialImport Kind = "partial_import"
	// KindInternal represents unexpected failures
	KindInternal Kind = "internal"
)

// Error is a categorized application error with optional field-level detail
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error with optional per-field detail
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound creates a not-found error for a named resource
func NotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// PartialImport wraps a single-record import failure
func PartialImport(record string, err error) *Error {
	return &Error{Kind: KindPartialImport, Message: fmt.Sprintf("record %s skipped", record), Err: err}
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain, KindInternal if none
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to an HTTP status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
