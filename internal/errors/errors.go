// Package errors holds the error taxonomy of the indexer. Recoverable
// problems (unreadable input files, bad config values) are returned as
// values; broken internal bookkeeping is raised as an InvariantError panic.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	KindIndexing  Kind = "indexing"
	KindNotFound  Kind = "not_found"
	KindTooLarge  Kind = "too_large"
	KindPermission Kind = "permission"
	KindIO        Kind = "io"
	KindConfig    Kind = "config"
	KindInvariant Kind = "invariant"
)

// IndexingError wraps failures of an indexing step. A recoverable error
// means the step still produced a usable, if partial, result.
type IndexingError struct {
	Op          string
	Err         error
	Recoverable bool
}

func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{Op: op, Err: err}
}

// WithRecoverable marks whether the caller may carry on with the partial result.
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s %s: %v", KindIndexing, e.Op, e.Err)
}

func (e *IndexingError) Unwrap() error { return e.Err }

func (e *IndexingError) IsRecoverable() bool { return e.Recoverable }

// FileError is a failure to read or stat one workspace file.
type FileError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// NewFileError classifies err by its fs sentinel.
func NewFileError(op, path string, err error) *FileError {
	kind := KindIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermission
	}
	return &FileError{Kind: kind, Op: op, Path: path, Err: err}
}

// NewFileTooLargeError reports a file skipped for exceeding the size limit.
func NewFileTooLargeError(path string, size, limit int64) *FileError {
	return &FileError{
		Kind: KindTooLarge,
		Op:   "read",
		Path: path,
		Err:  fmt.Errorf("%d bytes exceeds the %d byte limit", size, limit),
	}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// ConfigError names the config section or key that failed validation.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MultiError collects independent failures, such as one per unreadable file.
type MultiError struct {
	Errors []error
}

// NewMultiError drops nil entries.
func NewMultiError(errs []error) *MultiError {
	m := &MultiError{}
	for _, err := range errs {
		if err != nil {
			m.Errors = append(m.Errors, err)
		}
	}
	return m
}

// ErrOrNil returns nil when nothing was collected.
func (e *MultiError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *MultiError) Unwrap() []error { return e.Errors }
