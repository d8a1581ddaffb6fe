package ledger

import (
	"encoding/json"
	"fmt"

	"netbill/pkg/models"
)

// Document is the whole persisted ledger.
type Document struct {
	// Sequence is the last invoice sequence number handed out. It only grows.
	Sequence int                    `json:"sequence"`
	Invoices []models.InvoiceRecord `json:"invoices"`
}

// NewDocument returns an empty ledger document.
func NewDocument() *Document {
	return &Document{Invoices: []models.InvoiceRecord{}}
}

// MarshalDocument encodes doc in the on-disk format.
func MarshalDocument(doc *Document) ([]byte, error) {
	if doc.Invoices == nil {
		doc.Invoices = []models.InvoiceRecord{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return append(data, '\n'), nil
}

// UnmarshalDocument decodes the on-disk format.
func UnmarshalDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if doc.Invoices == nil {
		doc.Invoices = []models.InvoiceRecord{}
	}
	return doc, nil
}

// Filter selects records in Find.
type Filter struct {
	SubscriberID string
	Period       *models.Period
	Statuses     []models.InvoiceStatus
	ActiveOnly   bool
}

// Match reports whether r satisfies every set criterion.
func (f Filter) Match(r models.InvoiceRecord) bool {
	if f.SubscriberID != "" && r.SubscriberID != f.SubscriberID {
		return false
	}
	if f.Period != nil && r.Period() != *f.Period {
		return false
	}
	if f.ActiveOnly && !r.Status.IsActive() {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}
