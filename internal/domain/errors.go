package domain

import (
	"errors"
	"fmt"
)

// Pipeline stage names used in error messages and run records.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageCombine   = "combine"
	StageWrite     = "write"
)

// LoadError indicates an input file that is missing, unreadable, or malformed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SchemaError indicates an expected column that is absent, or two tables
// whose column lists disagree.
type SchemaError struct {
	Stage   string
	Column  string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: missing column %q: %s", e.Stage, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// WriteError indicates the merged output could not be persisted.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

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

// ErrMissingColumn creates a SchemaError for an absent column.
func ErrMissingColumn(stage, column, path string) *SchemaError {
	return &SchemaError{
		Stage:   stage,
		Column:  column,
		Message: fmt.Sprintf("column not present in %s", path),
	}
}

// ErrSchemaMismatch creates a SchemaError with a formatted message.
func ErrSchemaMismatch(stage, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies err into one of the pipeline error kinds.
// It returns "" for nil and "internal" for anything unrecognised.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		loadErr   *LoadError
		schemaErr *SchemaError
		writeErr  *WriteError
	)
	switch {
	case errors.As(err, &loadErr):
		return "LoadError"
	case errors.As(err, &schemaErr):
		return "SchemaError"
	case errors.As(err, &writeErr):
		return "WriteError"
	default:
		return "internal"
	}
}
