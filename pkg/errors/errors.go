// Package errors provides structured error types for mapprint.
//
// Every error that crosses a package boundary carries a machine-readable
// [Code] so that the CLI and the print service can map failures to exit
// codes and HTTP statuses without string matching.
//
// # Error Codes
//
//   - INVALID_*: bad user input (sizes, envelopes, styles, print specs)
//   - *_NOT_FOUND: missing styles, renderers or files
//   - DATASOURCE, RENDER, IO: failures while loading data, drawing or saving
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidSize, "invalid size %q", s)
//	if errors.Is(err, errors.ErrCodeInvalidSize) {
//	    // handle validation error
//	}
//
//	err = errors.Wrap(errors.ErrCodeIO, origErr, "Cannot open file for writing: %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidSize      Code = "INVALID_SIZE"
	ErrCodeInvalidEnvelope  Code = "INVALID_ENVELOPE"
	ErrCodeInvalidScale     Code = "INVALID_SCALE"
	ErrCodeInvalidStyle     Code = "INVALID_STYLE"
	ErrCodeInvalidFilter    Code = "INVALID_FILTER"
	ErrCodeInvalidColor     Code = "INVALID_COLOR"
	ErrCodeInvalidPrintSpec Code = "INVALID_PRINT_SPEC"
	ErrCodeInvalidPath      Code = "INVALID_PATH"
	ErrCodeInvalidLogLevel  Code = "INVALID_LOG_LEVEL"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeStyleNotFound   Code = "STYLE_NOT_FOUND"
	ErrCodeUnknownRenderer Code = "UNKNOWN_RENDERER"
	ErrCodeUnknownPlugin   Code = "UNKNOWN_PLUGIN"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"

	// Processing errors
	ErrCodeDatasource  Code = "DATASOURCE"
	ErrCodeRender      Code = "RENDER"
	ErrCodeIO          Code = "IO"
	ErrCodeUnsupported Code = "UNSUPPORTED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
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
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the cause chain.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsInput reports whether err is caused by bad user input rather than a
// processing failure.
func IsInput(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidSize, ErrCodeInvalidEnvelope,
		ErrCodeInvalidScale, ErrCodeInvalidStyle, ErrCodeInvalidFilter,
		ErrCodeInvalidColor, ErrCodeInvalidPrintSpec, ErrCodeInvalidPath,
		ErrCodeInvalidLogLevel, ErrCodeUnknownRenderer:
		return true
	}
	return false
}

// IsNotFound reports whether err describes a missing resource.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case ErrCodeNotFound, ErrCodeStyleNotFound, ErrCodeFileNotFound:
		return true
	}
	return false
}
