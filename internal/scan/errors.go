package scan

import (
	"errors"
	"fmt"
)

// Category classifies scan service failures so the state machine can tell a
// rejected scan request from a transient fault.
type Category string

const (
	// CategoryRejected means the service refused to open a scan window for the
	// identity (unknown passport, window already open, malformed id).
	CategoryRejected Category = "rejected"
	// CategoryTimeout means the service did not answer in time.
	CategoryTimeout Category = "timeout"
	// CategoryUnavailable means the service could not be reached or failed.
	CategoryUnavailable Category = "unavailable"
	// CategoryBadResponse means the service answered with an unexpected
	// status or body.
	CategoryBadResponse Category = "bad_response"
	// CategoryInternal means the request could not be built.
	CategoryInternal Category = "internal"
)

// Error wraps scan service failures with a normalized category.
type Error struct {
	Category   Category
	StatusCode int
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("scan service [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("scan service [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category Category, status int, message string, underlying error) *Error {
	return &Error{Category: category, StatusCode: status, Message: message, Underlying: underlying}
}

// GetCategory extracts the category from err, defaulting to CategoryInternal.
func GetCategory(err error) Category {
	var se *Error
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}

// IsRejected reports whether err is a scan-open rejection.
func IsRejected(err error) bool {
	return err != nil && GetCategory(err) == CategoryRejected
}
