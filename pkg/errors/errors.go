// Package errors provides structured error types for yamlviz.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the server and the engine
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input or specification validation failures
//   - *_NOT_FOUND: Resource not found
//   - INTERNAL_*: Unexpected internal errors
//
// Fatal loading conditions (an unregistered mapping version, a version
// mismatch between a mapping and its folder, duplicate registrations) and
// recoverable conditions (no graph type for a document, unknown node ids)
// are distinguished by code rather than by type.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDomainNotFound, "no graph type matches %s", path)
//	if errors.Is(err, errors.ErrCodeDomainNotFound) {
//	    // Surface to the caller, keep running
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidSchema, origErr, "compile %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeInvalidYAML    Code = "INVALID_YAML"
	ErrCodeInvalidMapping Code = "INVALID_MAPPING"
	ErrCodeInvalidSchema  Code = "INVALID_SCHEMA"

	// Graph type loading and registration errors
	ErrCodeUnsupportedMappingVersion Code = "UNSUPPORTED_MAPPING_VERSION"
	ErrCodeMappingVersionMismatch    Code = "MAPPING_VERSION_MISMATCH"
	ErrCodeGraphTypeConflict         Code = "GRAPH_TYPE_CONFLICT"

	// Resource not found errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeDomainNotFound Code = "DOMAIN_NOT_FOUND"
	ErrCodeNodeNotFound   Code = "NODE_NOT_FOUND"
	ErrCodeFileNotFound   Code = "FILE_NOT_FOUND"

	// Concurrency errors
	ErrCodeStaleGeneration Code = "STALE_GENERATION"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code,
// so a DOMAIN_NOT_FOUND wrapped by a pipeline error still matches.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err carries one of the codes that abort a graph
// type load outright instead of being skipped with a warning.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnsupportedMappingVersion, ErrCodeMappingVersionMismatch,
		ErrCodeGraphTypeConflict, ErrCodeInvalidSchema, ErrCodeInvalidMapping:
		return true
	}
	return false
}
