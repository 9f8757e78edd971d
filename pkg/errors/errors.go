package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category for stable testing and dispatch.
type ErrorCode string

const (
	ErrUnknown ErrorCode = "UNKNOWN"

	// Configuration errors: the source tree itself is broken. Always fatal.
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrBadVisibility ErrorCode = "BAD_VISIBILITY"
	ErrBadDirective  ErrorCode = "BAD_DIRECTIVE"
	ErrUndefinedKey  ErrorCode = "UNDEFINED_KEY"
	ErrInvalidElse   ErrorCode = "INVALID_ELSE"
	ErrUnclosedIf    ErrorCode = "UNCLOSED_IF"

	// Filesystem errors: always fatal, never retried.
	ErrFileAccess    ErrorCode = "FILE_ACCESS"
	ErrFileWrite     ErrorCode = "FILE_WRITE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrNotADirectory ErrorCode = "NOT_A_DIRECTORY"

	ErrCrontab ErrorCode = "CRONTAB"
)

// HomesyncError is a structured error with a code and optional details.
type HomesyncError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *HomesyncError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *HomesyncError) Unwrap() error {
	return e.Wrapped
}

// Is matches on error code so sentinel comparisons survive wrapping.
func (e *HomesyncError) Is(target error) bool {
	var targetErr *HomesyncError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new HomesyncError with the given code and message
func New(code ErrorCode, message string) *HomesyncError {
	return &HomesyncError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new HomesyncError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *HomesyncError {
	return &HomesyncError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a HomesyncError
func Wrap(err error, code ErrorCode, message string) *HomesyncError {
	if err == nil {
		return nil
	}
	return &HomesyncError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *HomesyncError {
	if err == nil {
		return nil
	}
	return &HomesyncError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *HomesyncError) WithDetail(key string, value interface{}) *HomesyncError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var herr *HomesyncError
	if errors.As(err, &herr) {
		return herr.Code == code
	}
	return false
}

// GetCode returns the error code from an error, or ErrUnknown if it is not
// a HomesyncError.
func GetCode(err error) ErrorCode {
	var herr *HomesyncError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return ErrUnknown
}
