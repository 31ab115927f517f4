// Package errors provides the coded error taxonomy shared by every barsheet
// component.
//
// Each failure a component can report has a machine-readable [Code]. Callers
// branch on the code (for example to decide whether the render backend must
// be restarted) and the CLI maps it to a human-readable hint.
//
// # Error Codes
//
// Codes are grouped by the stage that produces them:
//   - Resource setup: TEMP_CREATION_FAILED, CLOSE_FAILED, REMOVE_FAILED
//   - Encoding: DATA_LENGTH, CHAR_INVALID, INVALID_CODE_SET, ARGUMENT_ERROR
//   - Layout: INVALID_LAYOUT, INVALID_PROPERTY
//   - File output: FILE_RESET_FAILED, FILE_WRITE_FAILED, FLUSH_FAILED
//   - Rendering: RENDER_FAILED, RENDER_FATAL, RENDER_NOT_STARTED
//   - Dispatch: SUBPROCESS_FAILED, READ_FAILED, NO_PRINTERS, LAUNCH_FAILED
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidLayout, "%d x %d grid cannot hold %d barcodes", rows, cols, n)
//	if errors.Is(err, errors.ErrCodeInvalidLayout) {
//	    // highlight the layout settings
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFlushFailed, origErr, "sync %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Resource setup errors
	ErrCodeTempCreationFailed Code = "TEMP_CREATION_FAILED"
	ErrCodeCloseFailed        Code = "CLOSE_FAILED"
	ErrCodeRemoveFailed       Code = "REMOVE_FAILED"

	// Encoding errors
	ErrCodeDataLength     Code = "DATA_LENGTH"
	ErrCodeCharInvalid    Code = "CHAR_INVALID"
	ErrCodeInvalidCodeSet Code = "INVALID_CODE_SET"
	ErrCodeArgument       Code = "ARGUMENT_ERROR"

	// Layout errors
	ErrCodeInvalidLayout   Code = "INVALID_LAYOUT"
	ErrCodeInvalidProperty Code = "INVALID_PROPERTY"

	// File output errors
	ErrCodeFileResetFailed Code = "FILE_RESET_FAILED"
	ErrCodeFileWriteFailed Code = "FILE_WRITE_FAILED"
	ErrCodeFlushFailed     Code = "FLUSH_FAILED"

	// Render errors
	ErrCodeRenderFailed     Code = "RENDER_FAILED"
	ErrCodeRenderFatal      Code = "RENDER_FATAL"
	ErrCodeRenderNotStarted Code = "RENDER_NOT_STARTED"

	// Dispatch errors
	ErrCodeSubprocessFailed Code = "SUBPROCESS_FAILED"
	ErrCodeReadFailed       Code = "READ_FAILED"
	ErrCodeNoPrinters       Code = "NO_PRINTERS"
	ErrCodeLaunchFailed     Code = "LAUNCH_FAILED"

	// Generic errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
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

// Is reports whether any *Error in err's tree carries the given code.
// Joined errors are searched as well, so a teardown error built with
// errors.Join matches every code it contains.
func Is(err error, code Code) bool {
	found := false
	walk(err, func(e *Error) bool {
		if e.Code == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if err carries no *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Codes returns every code in err's tree in depth-first order.
func Codes(err error) []Code {
	var codes []Code
	walk(err, func(e *Error) bool {
		codes = append(codes, e.Code)
		return true
	})
	return codes
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

// walk visits every *Error reachable from err until fn returns false.
func walk(err error, fn func(*Error) bool) bool {
	if err == nil {
		return true
	}
	if e, ok := err.(*Error); ok {
		if !fn(e) {
			return false
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if !walk(inner, fn) {
				return false
			}
		}
	case interface{ Unwrap() error }:
		return walk(u.Unwrap(), fn)
	}
	return true
}
