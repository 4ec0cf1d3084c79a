// Package domain defines the core types, capability interfaces, and errors
// shared by the unification engine and its collaborators.
package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// LoadError indicates that a source's bytes are not a valid database image.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load source %q: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaReadError indicates that a source's catalog could not be read.
// It only ever isolates the failing source.
type SchemaReadError struct {
	Source string
	Err    error
}

func (e *SchemaReadError) Error() string {
	return fmt.Sprintf("read schema of %q: %v", e.Source, e.Err)
}

func (e *SchemaReadError) Unwrap() error { return e.Err }

// MergeError indicates that the unified database itself could not be built.
type MergeError struct {
	Message string
	Err     error
}

func (e *MergeError) Error() string {
	if e.Err == nil {
		return "merge: " + e.Message
	}
	return fmt.Sprintf("merge: %s: %v", e.Message, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// ExecutionError reports the statement of a batch that failed. Index is the
// zero-based position of Statement within the batch.
type ExecutionError struct {
	Message   string
	Statement string
	Index     int
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute statement %d (%s): %s", e.Index+1, e.Statement, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExportError indicates that a result could not be rendered.
type ExportError struct {
	Message string
}

func (e *ExportError) Error() string { return "export: " + e.Message }

// ErrExport creates an ExportError with a formatted message.
func ErrExport(format string, args ...interface{}) *ExportError {
	return &ExportError{Message: fmt.Sprintf(format, args...)}
}

// Stage names the pipeline stage that produced err: "load", "schema read",
// "merge", "execute", "export", "validation", or "" when err carries none.
func Stage(err error) string {
	var (
		loadErr       *LoadError
		schemaErr     *SchemaReadError
		mergeErr      *MergeError
		execErr       *ExecutionError
		exportErr     *ExportError
		validationErr *ValidationError
	)
	switch {
	case errors.As(err, &loadErr):
		return "load"
	case errors.As(err, &schemaErr):
		return "schema read"
	case errors.As(err, &mergeErr):
		return "merge"
	case errors.As(err, &execErr):
		return "execute"
	case errors.As(err, &exportErr):
		return "export"
	case errors.As(err, &validationErr):
		return "validation"
	default:
		return ""
	}
}
