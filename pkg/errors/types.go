// Package errors provides typed errors for quill.
//
// This package defines domain-specific error types for the subsystems around
// the activity tracker (config, feedback submission, authentication, editor
// protocol). All error types implement the standard error interface and support
// errors.Is() and errors.As() from the standard library and cockroachdb/errors.
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Field   string // Which config field has the issue
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
	}
	return "config error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with an underlying cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// FeedbackError represents failures talking to the feedback endpoint.
type FeedbackError struct {
	Operation  string // e.g., "Submit"
	StatusCode int    // HTTP status code if applicable
	Message    string
	Temporary  bool
	Cause      error
}

// Error implements the error interface.
func (e *FeedbackError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("feedback %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("feedback %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *FeedbackError) Unwrap() error {
	return e.Cause
}

// NewFeedbackError creates a new FeedbackError.
func NewFeedbackError(operation, message string) *FeedbackError {
	return &FeedbackError{Operation: operation, Message: message}
}

// NewFeedbackErrorWithStatus creates a new FeedbackError with HTTP status code.
func NewFeedbackErrorWithStatus(operation string, statusCode int, message string) *FeedbackError {
	return &FeedbackError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Temporary:  isTemporaryHTTPStatus(statusCode),
	}
}

// NewFeedbackErrorWithCause creates a new FeedbackError with an underlying cause.
func NewFeedbackErrorWithCause(operation, message string, cause error) *FeedbackError {
	return &FeedbackError{
		Operation: operation,
		Message:   message,
		Temporary: IsTemporary(cause),
		Cause:     cause,
	}
}

// AuthError represents credential lookup, refresh and login errors.
type AuthError struct {
	Operation string // e.g., "Token", "DeviceAuth", "TokenCache.Get"
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewAuthError creates a new AuthError.
func NewAuthError(operation, message string) *AuthError {
	return &AuthError{Operation: operation, Message: message}
}

// NewAuthErrorWithCause creates a new AuthError with an underlying cause.
func NewAuthErrorWithCause(operation, message string, cause error) *AuthError {
	return &AuthError{Operation: operation, Message: message, Cause: cause}
}

// ProtocolError represents a malformed request from the editor.
type ProtocolError struct {
	Line    int // 1-based input line, 0 when unknown
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("protocol error on line %d: %s", e.Line, e.Message)
	}
	return "protocol error: " + e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(line int, message string) *ProtocolError {
	return &ProtocolError{Line: line, Message: message}
}

// WithCause adds an underlying cause to the ProtocolError.
func (e *ProtocolError) WithCause(cause error) *ProtocolError {
	e.Cause = cause
	return e
}

// IsTemporary reports whether err or any error in its chain is a FeedbackError
// marked temporary. Callers use it for messaging only; submissions are never retried.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	var fbErr *FeedbackError
	if errors.As(err, &fbErr) {
		return fbErr.Temporary
	}

	return false
}

// IsConfigError checks if an error or any error in its chain is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// IsFeedbackError checks if an error or any error in its chain is a FeedbackError.
func IsFeedbackError(err error) bool {
	var fbErr *FeedbackError
	return errors.As(err, &fbErr)
}

// IsAuthError checks if an error or any error in its chain is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// isTemporaryHTTPStatus returns true for HTTP status codes that usually clear up on their own.
func isTemporaryHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// Re-export commonly used functions from cockroachdb/errors for convenience.
// This allows consumers to use quillerrors.Wrap() instead of importing two packages.
var (
	// New creates a new error with the given message.
	New = errors.New

	// Newf creates a new error with formatted message.
	Newf = errors.Newf

	// Wrap wraps an error with additional context.
	Wrap = errors.Wrap

	// Wrapf wraps an error with formatted additional context.
	Wrapf = errors.Wrapf

	// Is reports whether any error in err's chain matches target.
	Is = errors.Is

	// As finds the first error in err's chain that matches target.
	As = errors.As
)
