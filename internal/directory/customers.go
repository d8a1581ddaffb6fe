// Package directory stores customer and partner records as flat JSON files.
//
// Files are re-read on every call, so edits made by other tools between
// billing runs are always visible.
package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"netbill/internal/logger"
	"netbill/pkg/models"
)

// Customers is the customer directory.
type Customers struct {
	path     string
	mu       sync.Mutex
	validate *validator.Validate
	log      zerolog.Logger
}

// NewCustomers returns a directory backed by the JSON file at path.
func NewCustomers(path string) *Customers {
	return &Customers{
		path:     path,
		validate: validator.New(),
		log:      logger.WithComponent("customers"),
	}
}

// Customers returns a snapshot keyed by subscriber id.
func (c *Customers) Customers(ctx context.Context) (map[string]models.CustomerRecord, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.CustomerRecord, len(records))
	for _, r := range records {
		out[r.SubscriberID] = r
	}
	return out, nil
}

// List returns every customer ordered by customer number.
func (c *Customers) List(ctx context.Context) ([]models.CustomerRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// SyncResult reports what SyncCustomers changed.
type SyncResult struct {
	Created []models.CustomerRecord `json:"created"`
	Total   int                     `json:"total"`
}

// Sync makes sure every subscriber has a customer record. New records get
// the next customer number; existing records are left untouched.
func (c *Customers) Sync(ctx context.Context, subscribers []models.Subscriber) (SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return SyncResult{}, err
	}

	known := make(map[string]bool, len(records))
	next := 0
	for _, r := range records {
		known[r.SubscriberID] = true
		if r.CustomerNumber > next {
			next = r.CustomerNumber
		}
	}

	var result SyncResult
	for _, sub := range subscribers {
		if sub.SubscriberID == "" || known[sub.SubscriberID] {
			continue
		}
		next++
		rec := models.CustomerRecord{
			SubscriberID:   sub.SubscriberID,
			Name:           sub.SubscriberID,
			CustomerNumber: next,
		}
		records = append(records, rec)
		known[sub.SubscriberID] = true
		result.Created = append(result.Created, rec)
	}
	result.Total = len(records)

	if len(result.Created) == 0 {
		return result, nil
	}
	if err := c.save(records); err != nil {
		return SyncResult{}, err
	}

	c.log.Info().
		Int("created", len(result.Created)).
		Int("total", result.Total).
		Msg("Customer directory synchronized")
	return result, nil
}

// Upsert creates or edits a customer. The customer number of an existing
// record is kept whatever the input says; a new record gets the next number.
func (c *Customers) Upsert(ctx context.Context, rec models.CustomerRecord) (models.CustomerRecord, error) {
	if err := c.validate.Struct(rec); err != nil {
		return models.CustomerRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load()
	if err != nil {
		return models.CustomerRecord{}, err
	}

	next := 0
	found := -1
	for i, r := range records {
		if r.CustomerNumber > next {
			next = r.CustomerNumber
		}
		if r.SubscriberID == rec.SubscriberID {
			found = i
		}
	}

	if found >= 0 {
		rec.CustomerNumber = records[found].CustomerNumber
		records[found] = rec
	} else {
		rec.CustomerNumber = next + 1
		records = append(records, rec)
	}

	if err := c.save(records); err != nil {
		return models.CustomerRecord{}, err
	}
	return rec, nil
}

func (c *Customers) load() ([]models.CustomerRecord, error) {
	records, err := readJSON[models.CustomerRecord](c.path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: c.path, Err: err}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CustomerNumber < records[j].CustomerNumber
	})
	return records, nil
}

func (c *Customers) save(records []models.CustomerRecord) error {
	if err := writeJSON(c.path, records); err != nil {
		return &FileError{Op: "write", Path: c.path, Err: err}
	}
	return nil
}
