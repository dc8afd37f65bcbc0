package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrInvalidInput
	ErrNotFound
	ErrIncompatible
	ErrChecksumMismatch
	ErrNetwork
	ErrExtraction
	ErrTool
	ErrStore
	ErrIO
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrInvalidInput:
		return "InvalidInput"
	case ErrNotFound:
		return "NotFound"
	case ErrIncompatible:
		return "Incompatible"
	case ErrChecksumMismatch:
		return "ChecksumMismatch"
	case ErrNetwork:
		return "NetworkError"
	case ErrExtraction:
		return "ExtractionError"
	case ErrTool:
		return "ToolError"
	case ErrStore:
		return "StoreError"
	case ErrIO:
		return "IOError"
	default:
		return "Unknown"
	}
}

// ExitCode returns the process exit code reported for this error type.
func (e ErrorType) ExitCode() int {
	if e == ErrUnknown {
		return 1
	}
	return int(e) + 1
}

// PkgError represents an error raised by one stage of a package operation
type PkgError struct {
	Type    ErrorType
	Stage   string
	Package string
	Err     error
}

// Error implements the error interface
func (e *PkgError) Error() string {
	stage := e.Stage
	if stage == "" {
		stage = "core"
	}
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, stage, e.Package, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, stage, e.Err)
}

// Unwrap returns the wrapped error
func (e *PkgError) Unwrap() error {
	return e.Err
}

// NewError builds a PkgError with a formatted cause.
func NewError(t ErrorType, stage, pkg, format string, args ...interface{}) *PkgError {
	return &PkgError{Type: t, Stage: stage, Package: pkg, Err: fmt.Errorf(format, args...)}
}

// WrapError wraps err as a PkgError unless it already carries a type, in
// which case the original classification is kept.
func WrapError(t ErrorType, stage, pkg string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PkgError
	if errors.As(err, &pe) {
		return err
	}
	return &PkgError{Type: t, Stage: stage, Package: pkg, Err: err}
}

// KindOf returns the ErrorType carried by err, or ErrUnknown.
func KindOf(err error) ErrorType {
	var pe *PkgError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrUnknown
}

// IsKind reports whether err carries the given ErrorType.
func IsKind(err error, t ErrorType) bool {
	return err != nil && KindOf(err) == t
}

// ExitCode maps an error to the process exit code. nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
