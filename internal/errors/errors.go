// Package errors provides error code definitions for the time ledger.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code that transports can map to
// protocol-specific responses.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrPermission ErrorCode = "PERMISSION_DENIED"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Time entry errors
	ErrEntryNotFound ErrorCode = "ENTRY_NOT_FOUND"
	ErrEntryConflict ErrorCode = "ENTRY_CONFLICT"
	ErrInvalidState  ErrorCode = "INVALID_STATE"
	ErrEntryOverlap  ErrorCode = "ENTRY_OVERLAP"
	ErrTimerRunning  ErrorCode = "TIMER_RUNNING"

	// Approval errors
	ErrApprovalDecided  ErrorCode = "APPROVAL_DECIDED"
	ErrApprovalNotReady ErrorCode = "APPROVAL_NOT_READY"

	// Association errors
	ErrProjectNotFound ErrorCode = "PROJECT_NOT_FOUND"
	ErrTaskNotFound    ErrorCode = "TASK_NOT_FOUND"
	ErrUserNotFound    ErrorCode = "USER_NOT_FOUND"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal for untyped errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
