package ledger

import (
	"errors"
	"fmt"

	"netbill/pkg/models"
)

var (
	// ErrInvoiceNotFound is returned when no record has the requested id.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrImmutableInvoice is returned on any attempt to modify a merged record.
	ErrImmutableInvoice = errors.New("merged invoices are immutable")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid invoice status transition")

	// ErrInvalidRecord is returned when a record fails the ledger's own checks.
	ErrInvalidRecord = errors.New("invalid invoice record")

	// ErrDuplicatePeriod matches any *DuplicatePeriodError.
	ErrDuplicatePeriod = errors.New("active invoice already exists for period")

	// ErrLockNotObtained is returned when the distributed ledger lock stays held by another writer.
	ErrLockNotObtained = errors.New("ledger lock not obtained")
)

// DuplicatePeriodError reports an append that would create a second active
// invoice for the same subscriber and period.
type DuplicatePeriodError struct {
	SubscriberID string
	Period       models.Period
	ExistingID   string
}

// Error implements the error interface.
func (e *DuplicatePeriodError) Error() string {
	return fmt.Sprintf("subscriber %s already has active invoice %s for %s", e.SubscriberID, e.ExistingID, e.Period)
}

// Is makes errors.Is(err, ErrDuplicatePeriod) work.
func (e *DuplicatePeriodError) Is(target error) bool {
	return target == ErrDuplicatePeriod
}

// PersistenceError wraps a failure to load or save the ledger document.
// The operation that produced it did not complete and must be retried as a whole.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
