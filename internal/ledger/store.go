// Package ledger owns the lifecycle of invoice records.
//
// The ledger is persisted as one document. Every mutation is a
// read-modify-write of that document and runs inside Transact, which holds an
// in-process mutex and, when configured, a distributed lock, so that no two
// writers can interleave between reading the document and saving it.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"netbill/internal/logger"
	"netbill/pkg/models"
)

// Persister loads and saves the whole ledger document.
type Persister interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}

// Locker serializes writers across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// Store is the single-writer front of the ledger.
type Store struct {
	mu        sync.Mutex
	persister Persister
	locker    Locker
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLocker adds a distributed lock around every transaction.
func WithLocker(l Locker) Option {
	return func(s *Store) { s.locker = l }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a Store on top of p.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		now:       time.Now,
		log:       logger.WithComponent("ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transact runs fn against a freshly loaded document and persists the result
// once if fn changed anything. If fn returns an error nothing is saved.
func (s *Store) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx)
		if err != nil {
			return &PersistenceError{Op: "acquire lock", Err: err}
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("Failed to release ledger lock")
			}
		}()
	}

	doc, err := s.persister.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}

	tx := &Tx{doc: doc, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}

	if err := s.persister.Save(ctx, doc); err != nil {
		s.log.Error().Err(err).Int("invoices", len(doc.Invoices)).Msg("Failed to persist ledger")
		return &PersistenceError{Op: "save", Err: err}
	}

	s.log.Debug().
		Int("invoices", len(doc.Invoices)).
		Int("sequence", doc.Sequence).
		Msg("Ledger persisted")
	return nil
}

// Append stores a new record in its own transaction.
func (s *Store) Append(ctx context.Context, rec models.InvoiceRecord) (models.InvoiceRecord, error) {
	var out models.InvoiceRecord
	err := s.Transact(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Append(rec)
		return err
	})
	return out, err
}

// Update applies patch to the record with the given id in its own transaction.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (models.InvoiceRecord, error) {
	var out models.InvoiceRecord
	err := s.Transact(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Update(id, patch)
		return err
	})
	return out, err
}

// Find returns copies of the records matching f, in ledger order.
func (s *Store) Find(ctx context.Context, f Filter) ([]models.InvoiceRecord, error) {
	var out []models.InvoiceRecord
	err := s.read(ctx, func(tx *Tx) {
		out = tx.Find(f)
	})
	return out, err
}

// All returns copies of every record, in ledger order.
func (s *Store) All(ctx context.Context) ([]models.InvoiceRecord, error) {
	return s.Find(ctx, Filter{})
}

func (s *Store) read(ctx context.Context, fn func(tx *Tx)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.persister.Load(ctx)
	if err != nil {
		return &PersistenceError{Op: "load", Err: err}
	}
	fn(&Tx{doc: doc, now: s.now})
	return nil
}

// Patch describes a change to an existing record. Nil fields are left alone.
type Patch struct {
	Status      *models.InvoiceStatus
	PaidAt      *time.Time
	Amount      *decimal.Decimal
	Method      *string
	Note        string
	Commissions []models.CommissionEntry
}

// Tx is the view of the ledger inside a transaction.
type Tx struct {
	doc   *Document
	now   func() time.Time
	dirty bool
}

// Find returns copies of the records matching f.
func (tx *Tx) Find(f Filter) []models.InvoiceRecord {
	out := make([]models.InvoiceRecord, 0)
	for _, r := range tx.doc.Invoices {
		if f.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Get returns a copy of the record with the given id.
func (tx *Tx) Get(id string) (models.InvoiceRecord, bool) {
	if i := tx.index(id); i >= 0 {
		return tx.doc.Invoices[i].Clone(), true
	}
	return models.InvoiceRecord{}, false
}

// Active returns the active record for the subscriber and period, if any.
func (tx *Tx) Active(subscriberID string, p models.Period) (models.InvoiceRecord, bool) {
	for _, r := range tx.doc.Invoices {
		if r.SubscriberID == subscriberID && r.Status.IsActive() && r.Period() == p {
			return r.Clone(), true
		}
	}
	return models.InvoiceRecord{}, false
}

// NextSequence reserves and returns the next invoice sequence number.
func (tx *Tx) NextSequence() int {
	tx.doc.Sequence++
	tx.dirty = true
	return tx.doc.Sequence
}

// Append validates rec and adds it to the ledger. It fails with a
// *DuplicatePeriodError when the subscriber already has an active record for
// the same period.
func (tx *Tx) Append(rec models.InvoiceRecord) (models.InvoiceRecord, error) {
	if rec.SubscriberID == "" {
		return models.InvoiceRecord{}, fmt.Errorf("%w: subscriber id is required", ErrInvalidRecord)
	}
	if rec.Amount.IsNegative() {
		return models.InvoiceRecord{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidRecord)
	}
	if !rec.Status.IsActive() {
		return models.InvoiceRecord{}, fmt.Errorf("%w: new records must be pending, postponed or completed", ErrInvalidRecord)
	}

	period := rec.Period()
	if existing, ok := tx.Active(rec.SubscriberID, period); ok {
		return models.InvoiceRecord{}, &DuplicatePeriodError{
			SubscriberID: rec.SubscriberID,
			Period:       period,
			ExistingID:   existing.ID,
		}
	}

	now := tx.now().UTC()
	rec = rec.Clone()
	if rec.ID == "" {
		rec.ID = newID()
	}
	rec.PeriodDate = period.Start()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == models.StatusCompleted {
		paid := now
		if rec.PaidAt != nil {
			paid = rec.PaidAt.UTC()
		}
		rec.PaidAt = &paid
	} else {
		rec.PaidAt = nil
	}

	tx.doc.Invoices = append(tx.doc.Invoices, rec)
	tx.dirty = true
	return rec.Clone(), nil
}

// Update applies patch to the record with the given id.
func (tx *Tx) Update(id string, patch Patch) (models.InvoiceRecord, error) {
	i := tx.index(id)
	if i < 0 {
		return models.InvoiceRecord{}, ErrInvoiceNotFound
	}
	rec := tx.doc.Invoices[i].Clone()
	if rec.Status == models.StatusMerged {
		return models.InvoiceRecord{}, ErrImmutableInvoice
	}

	now := tx.now().UTC()
	if patch.Status != nil && *patch.Status != rec.Status {
		if !canTransition(rec.Status, *patch.Status) {
			return models.InvoiceRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, *patch.Status)
		}
		if *patch.Status == models.StatusCompleted {
			paid := now
			if patch.PaidAt != nil {
				paid = patch.PaidAt.UTC()
			}
			rec.PaidAt = &paid
		}
		if rec.Status == models.StatusCompleted {
			rec.PaidAt = nil
		}
		rec.Status = *patch.Status
	} else if patch.PaidAt != nil && rec.Status == models.StatusCompleted {
		paid := patch.PaidAt.UTC()
		rec.PaidAt = &paid
	}

	if patch.Amount != nil {
		if patch.Amount.IsNegative() {
			return models.InvoiceRecord{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidRecord)
		}
		rec.Amount = *patch.Amount
	}
	if patch.Method != nil {
		rec.Method = *patch.Method
	}
	if patch.Commissions != nil {
		rec.Commissions = append([]models.CommissionEntry(nil), patch.Commissions...)
	}
	if patch.Note != "" {
		rec.AppendNote(patch.Note)
	}
	rec.UpdatedAt = now

	tx.doc.Invoices[i] = rec
	tx.dirty = true
	return rec.Clone(), nil
}

func newID() string {
	return uuid.NewString()
}

func (tx *Tx) index(id string) int {
	for i := range tx.doc.Invoices {
		if tx.doc.Invoices[i].ID == id {
			return i
		}
	}
	return -1
}

var transitions = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.StatusPending:   {models.StatusCompleted, models.StatusPostponed, models.StatusMerged},
	models.StatusPostponed: {models.StatusPending, models.StatusCompleted, models.StatusMerged},
	models.StatusCompleted: {models.StatusPending},
}

func canTransition(from, to models.InvoiceStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
