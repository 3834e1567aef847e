// Package errors provides structured error handling for scanhub operations.
// It defines error codes, error types, and utilities for creating and
// classifying errors across the scan orchestration engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown    ErrorCode = "UNKNOWN"
	CodeValidation ErrorCode = "VALIDATION"
	CodeNotFound   ErrorCode = "NOT_FOUND"
	CodeLifecycle  ErrorCode = "LIFECYCLE"
	CodeCanceled   ErrorCode = "CANCELED"

	// Scan execution errors.
	CodeExecution ErrorCode = "EXECUTION"
	CodeFatalInit ErrorCode = "FATAL_INIT"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeConflict           ErrorCode = "CONFLICT"
)

// ScanError represents an error that occurred in scan orchestration.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{Code: code, Message: message}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message string, err error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Cause: err}
}

// Common error creation functions

// NewValidationError creates an error for invalid scan requests or parameters.
func NewValidationError(message string) *ScanError {
	return NewScanError(CodeValidation, message)
}

// NewNotFoundError creates an error for unresolvable references.
func NewNotFoundError(resource string) *ScanError {
	return NewScanError(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewLifecycleError creates an error for an illegal status transition.
func NewLifecycleError(message string) *ScanError {
	return NewScanError(CodeLifecycle, message)
}

// NewExecutionError creates an error for a single target's failed tool
// invocation. These are recorded by the orchestrator and never propagate
// past the scan boundary.
func NewExecutionError(target, message string, err error) *ScanError {
	return &ScanError{
		Code:    CodeExecution,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// NewFatalInitError creates an error for scan-capability unavailability at
// startup. This is a process-level configuration failure, not a scan failure.
func NewFatalInitError(message string, err error) *ScanError {
	return WrapScanError(CodeFatalInit, message, err)
}

// ErrDatabaseConnection creates an error for database connection failures.
func ErrDatabaseConnection(err error) *DatabaseError {
	return WrapDatabaseError(CodeDatabaseConnection, "Failed to connect to database", err)
}

// Utility functions for common error operations

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if stderrors.As(err, &dbErr) {
		return dbErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsLifecycle reports whether err is an illegal-transition error.
func IsLifecycle(err error) bool {
	return IsCode(err, CodeLifecycle)
}

// IsExecution reports whether err is a per-target execution error.
func IsExecution(err error) bool {
	return IsCode(err, CodeExecution)
}

// IsFatalInit reports whether err indicates the scan capability was
// unavailable at startup.
func IsFatalInit(err error) bool {
	return IsCode(err, CodeFatalInit)
}

// IsFatal determines if an error indicates a condition that should stop
// the process rather than a single scan.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeFatalInit, CodeDatabaseConnection:
		return true
	default:
		return false
	}
}
