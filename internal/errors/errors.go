package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the arabica class index
type ErrorType string

const (
	// Scanning errors
	ErrorTypeArchive ErrorType = "archive"
	ErrorTypeWalk    ErrorType = "walk"

	// State file errors
	ErrorTypePersist    ErrorType = "persist"
	ErrorTypePermission ErrorType = "permission"
	ErrorTypeNotFound   ErrorType = "not_found"

	// Project root resolution
	ErrorTypeResolve ErrorType = "resolve"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// ArchiveError is a per-archive scan failure. It is recoverable: the
// remaining archives of an index request are still processed.
type ArchiveError struct {
	Type        ErrorType
	Path        string
	Operation   string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewArchiveError creates a new archive error with context
func NewArchiveError(op, path string, err error) *ArchiveError {
	return &ArchiveError{
		Type:        ErrorTypeArchive,
		Path:        path,
		Operation:   op,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: true,
	}
}

// Error omits the path because progress lines already print it.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ArchiveError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if processing can continue past this error
func (e *ArchiveError) IsRecoverable() bool {
	return e.Recoverable
}

// WalkError is a structural failure while enumerating archives. It aborts
// the enclosing index request.
type WalkError struct {
	Type       ErrorType
	Root       string
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewWalkError creates a new walk error
func NewWalkError(root, path string, err error) *WalkError {
	return &WalkError{
		Type:       ErrorTypeWalk,
		Root:       root,
		Path:       path,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *WalkError) Error() string {
	if e.Path != "" && e.Path != e.Root {
		return fmt.Sprintf("walk %s failed at %s: %v", e.Root, e.Path, e.Underlying)
	}
	return fmt.Sprintf("walk %s failed: %v", e.Root, e.Underlying)
}

// Unwrap returns the underlying error
func (e *WalkError) Unwrap() error {
	return e.Underlying
}

// PersistError represents a failure reading or writing the state file
type PersistError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewPersistError creates a new persistence error
func NewPersistError(op, path string, err error) *PersistError {
	errorType := ErrorTypePersist
	switch {
	case errors.Is(err, fs.ErrNotExist):
		errorType = ErrorTypeNotFound
	case errors.Is(err, fs.ErrPermission):
		errorType = ErrorTypePermission
	}

	return &PersistError{
		Type:       errorType,
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *PersistError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *PersistError) Unwrap() error {
	return e.Underlying
}

// IsNotFound reports whether the state file simply does not exist yet
func (e *PersistError) IsNotFound() bool {
	return e.Type == ErrorTypeNotFound
}

// ResolveError describes why the project root could not be located.
// Resolution always falls back to a usable path, so this is informational.
type ResolveError struct {
	Type       ErrorType
	Command    []string
	ExitCode   int
	Underlying error
	Timestamp  time.Time
}

// NewResolveError creates a new resolve error
func NewResolveError(command []string, exitCode int, err error) *ResolveError {
	return &ResolveError{
		Type:       ErrorTypeResolve,
		Command:    command,
		ExitCode:   exitCode,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ResolveError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("command %v exited with status=%d: %v", e.Command, e.ExitCode, e.Underlying)
	}
	return fmt.Sprintf("command %v failed: %v", e.Command, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ResolveError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error
func NewMultiError(errs []error) *MultiError {
	// Filter out nil errors
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}

// ErrorOrNil returns nil when no errors were collected
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}
