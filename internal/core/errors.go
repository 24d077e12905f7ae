package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatChannel    ErrorCategory = "channel"    // Pipe creation or hand-off
	ErrCatFork       ErrorCategory = "fork"       // Helper process could not be started
	ErrCatLaunch     ErrorCategory = "launch"     // Debugger could not be started
	ErrCatRendezvous ErrorCategory = "rendezvous" // Halt/resume handshake
	ErrCatProtocol   ErrorCategory = "protocol"   // Tagged stream read/write
	ErrCatValidation ErrorCategory = "validation" // Invalid input or configuration
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the diagnostics layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrChannel creates a channel creation error.
func ErrChannel(message string) *DomainError {
	return &DomainError{
		Category: ErrCatChannel,
		Code:     CodePipeFailed,
		Message:  message,
	}
}

// ErrFork creates an error for a helper process that could not be started.
func ErrFork(role, message string) *DomainError {
	return &DomainError{
		Category: ErrCatFork,
		Code:     CodeForkFailed,
		Message:  message,
		Details:  map[string]interface{}{"role": role},
	}
}

// ErrLaunch creates a debugger launch error.
func ErrLaunch(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatLaunch,
		Code:     code,
		Message:  message,
	}
}

// ErrRendezvous creates a halt/resume handshake error.
func ErrRendezvous(pid int, message string) *DomainError {
	return &DomainError{
		Category: ErrCatRendezvous,
		Code:     CodeRendezvousFailed,
		Message:  message,
		Details:  map[string]interface{}{"pid": pid},
	}
}

// ErrProtocol creates a tagged stream error.
func ErrProtocol(message string) *DomainError {
	return &DomainError{
		Category: ErrCatProtocol,
		Code:     CodeStreamFailed,
		Message:  message,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodePipeFailed       = "PIPE_FAILED"
	CodeForkFailed       = "FORK_FAILED"
	CodeDebuggerNotFound = "DEBUGGER_NOT_FOUND"
	CodeExecFailed       = "EXEC_FAILED"
	CodeFDPathMissing    = "FD_PATH_UNAVAILABLE"
	CodeRendezvousFailed = "RENDEZVOUS_FAILED"
	CodeStreamFailed     = "STREAM_FAILED"
	CodeUnknownRole      = "UNKNOWN_ROLE"
	CodeInvalidHandoff   = "INVALID_HANDOFF"
	CodeInvalidConfig    = "INVALID_CONFIG"
)
