package directory

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned when a directory record fails validation.
	ErrInvalidRecord = errors.New("invalid directory record")

	// ErrNotFound is returned when an edit targets an unknown id.
	ErrNotFound = errors.New("directory record not found")
)

// FileError reports a failure reading or writing a directory file.
type FileError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("directory: %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
