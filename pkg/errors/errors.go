// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown             = "UNKNOWN_ERROR"
	CodeInvalidConstraints  = "INVALID_CONSTRAINTS"
	CodeInfeasibleDemand    = "INFEASIBLE_DEMAND"
	CodeTimeBudgetExhausted = "TIME_BUDGET_EXHAUSTED"
	CodeDataInconsistency   = "DATA_INCONSISTENCY"
	CodeCancelled           = "CANCELLED"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeStorageError        = "STORAGE_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeConfigError         = "CONFIG_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
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

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidConstraints  = New(CodeInvalidConstraints, "constraint validation failed")
	ErrInfeasibleDemand    = New(CodeInfeasibleDemand, "demand cannot be satisfied")
	ErrTimeBudgetExhausted = New(CodeTimeBudgetExhausted, "time budget exhausted")
	ErrDataInconsistency   = New(CodeDataInconsistency, "material conservation check failed")
	ErrCancelled           = New(CodeCancelled, "task cancelled")
	ErrInvalidInput        = New(CodeInvalidInput, "invalid input")
	ErrDatabaseError       = New(CodeDatabaseError, "database error")
	ErrStorageError        = New(CodeStorageError, "storage error")
	ErrNotFound            = New(CodeNotFound, "resource not found")
	ErrConfigError         = New(CodeConfigError, "configuration error")
	ErrInternal            = New(CodeInternal, "internal error")
)

// IsInvalidConstraints checks if the error is a constraint validation error.
func IsInvalidConstraints(err error) bool {
	return errors.Is(err, ErrInvalidConstraints)
}

// IsCancelled checks if the error is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
