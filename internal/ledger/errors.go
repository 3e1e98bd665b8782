package ledger

import (
	"errors"
	"fmt"
)

// Error is a ledger failure with a machine-readable code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// LotID identifies the affected lot, when there is one.
	LotID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the lot (or its status) does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates a transaction exhausted its retries.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidArgument indicates bad input: direction, count, field.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodePartialDelete indicates a delete stopped after removing some
	// of a lot's documents.
	ErrCodePartialDelete ErrorCode = "PARTIAL_DELETE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsNotFound reports whether err is a NOT_FOUND ledger error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsConflict reports whether err is a CONFLICT ledger error.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflict) }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT ledger error.
func IsInvalidArgument(err error) bool { return hasCode(err, ErrCodeInvalidArgument) }

// IsPartialDelete reports whether err is a PARTIAL_DELETE ledger error.
func IsPartialDelete(err error) bool { return hasCode(err, ErrCodePartialDelete) }

// NewNotFoundError creates a NOT_FOUND error for a missing lot.
func NewNotFoundError(lotID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("lot %s not found", lotID),
		LotID:   lotID,
	}
}

// NewStatusNotFoundError creates a NOT_FOUND error for a lot without status.
func NewStatusNotFoundError(lotID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no status for %s", lotID),
		LotID:   lotID,
	}
}

// NewConflictError wraps a store conflict.
func NewConflictError(lotID string, err error) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("concurrent updates to %s", lotID),
		LotID:   lotID,
		Err:     err,
	}
}

// NewInvalidArgumentError creates an INVALID_ARGUMENT error.
func NewInvalidArgumentError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewPartialDeleteError reports what a failed delete had already removed.
func NewPartialDeleteError(report *DeleteReport, err error) *Error {
	return &Error{
		Code: ErrCodePartialDelete,
		Message: fmt.Sprintf("deleted %d of %d events of %s (status removed: %t)",
			report.EventsDeleted, report.EventsFound, report.LotID, report.StatusDeleted),
		LotID: report.LotID,
		Err:   err,
	}
}
