package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrCollaboratorUnavailable matches every *CollaboratorUnavailableError.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ValidationError rejects caller input before the ledger is touched.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CollaboratorUnavailableError reports that the router or a directory could
// not be read or acted on.
type CollaboratorUnavailableError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorUnavailableError) Unwrap() error {
	return e.Err
}

func (e *CollaboratorUnavailableError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}

func unavailable(collaborator, op string, err error) error {
	return &CollaboratorUnavailableError{Collaborator: collaborator, Op: op, Err: err}
}
