package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"netbill/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// Partners is the partner directory.
type Partners struct {
	path     string
	mu       sync.Mutex
	validate *validator.Validate
}

// NewPartners returns a directory backed by the JSON file at path.
func NewPartners(path string) *Partners {
	return &Partners{
		path:     path,
		validate: validator.New(),
	}
}

// Partners returns a snapshot keyed by partner id.
func (p *Partners) Partners(ctx context.Context) (map[string]models.PartnerRecord, error) {
	records, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.PartnerRecord, len(records))
	for _, r := range records {
		out[r.PartnerID] = r
	}
	return out, nil
}

// List returns every partner ordered by username.
func (p *Partners) List(ctx context.Context) ([]models.PartnerRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

// Upsert creates or replaces a partner after validating its rates.
func (p *Partners) Upsert(ctx context.Context, rec models.PartnerRecord) (models.PartnerRecord, error) {
	if err := ValidatePartner(p.validate, rec); err != nil {
		return models.PartnerRecord{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return models.PartnerRecord{}, err
	}

	replaced := false
	for i := range records {
		if records[i].PartnerID == rec.PartnerID {
			records[i] = rec
			replaced = true
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	if err := writeJSON(p.path, records); err != nil {
		return models.PartnerRecord{}, &FileError{Op: "write", Path: p.path, Err: err}
	}
	return rec, nil
}

func (p *Partners) load() ([]models.PartnerRecord, error) {
	records, err := readJSON[models.PartnerRecord](p.path)
	if err != nil {
		return nil, &FileError{Op: "read", Path: p.path, Err: err}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Username < records[j].Username
	})
	return records, nil
}

// ValidatePartner checks required fields and that rates lie within 0-100.
func ValidatePartner(v *validator.Validate, rec models.PartnerRecord) error {
	if err := v.Struct(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for name, rate := range map[string]decimal.Decimal{
		"agentRate":      rec.AgentRate,
		"technicianRate": rec.TechnicianRate,
	} {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s must be between 0 and 100, got %s", ErrInvalidRecord, name, rate)
		}
	}
	return nil
}
