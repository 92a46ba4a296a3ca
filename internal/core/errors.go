package core

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes lifecycle failures for the presentation layer
type ErrorKind string

const (
	ErrValidation        ErrorKind = "validation"
	ErrDuplicateID       ErrorKind = "duplicate_id"
	ErrNotFound          ErrorKind = "not_found"
	ErrCorruptRegistry   ErrorKind = "corrupt_registry"
	ErrCopyFailed        ErrorKind = "copy_failed"
	ErrAlreadyExists     ErrorKind = "already_exists"
	ErrSourceUnreachable ErrorKind = "source_unreachable"
)

// Error is a structured lifecycle error: a kind the caller can switch on,
// a human-readable detail, and the offending path when one exists. Raw
// filesystem errors are wrapped, never surfaced on their own.
type Error struct {
	Kind   ErrorKind
	Detail string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a structured error with no underlying cause
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError creates a structured error wrapping an underlying cause
func WrapError(kind ErrorKind, path string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Path: path, Err: err}
}

// KindOf returns the kind of err, or "" if err carries no kind
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a structured error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// ExitCode maps an error to the process exit code. Validation errors and
// filesystem errors get distinct codes so scripts can tell them apart.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch KindOf(err) {
	case ErrValidation:
		return ExitInvalidArgs
	case ErrDuplicateID:
		return ExitInstallFailed
	case ErrNotFound:
		return ExitDeinstallFailed
	case ErrCorruptRegistry:
		return ExitRegistry
	case ErrCopyFailed, ErrAlreadyExists, ErrSourceUnreachable:
		return ExitFilesystem
	default:
		return ExitGeneral
	}
}
