package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a structural-input validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from an external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// Validation error codes for structural query input. These fail fast and are
// never retried; callers must treat them as client errors.
const (
	CodeEmptyQuery     = "EMPTY_QUERY"
	CodeEmptyPatientID = "EMPTY_PATIENT_ID"
	CodeQueryTooLong   = "QUERY_TOO_LONG"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error with a machine-readable code
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewEmptyQueryError reports a blank query string
func NewEmptyQueryError() *AppError {
	return NewValidationError(CodeEmptyQuery, "query must not be empty")
}

// NewEmptyPatientIDError reports a blank patient identifier
func NewEmptyPatientIDError() *AppError {
	return NewValidationError(CodeEmptyPatientID, "patient id must not be empty")
}

// NewQueryTooLongError reports a query exceeding the length cap
func NewQueryTooLongError(maxLen int) *AppError {
	return NewValidationError(CodeQueryTooLong, fmt.Sprintf("query exceeds maximum length of %d characters", maxLen))
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
