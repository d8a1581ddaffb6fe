package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice record.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "pending"
	StatusCompleted InvoiceStatus = "completed"
	StatusPostponed InvoiceStatus = "postponed"
	StatusMerged    InvoiceStatus = "merged" // balance folded into a later invoice
)

// IsValid reports whether s is a known status.
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusPostponed, StatusMerged:
		return true
	}
	return false
}

// IsActive reports whether the record still counts for its period.
// Merged records are history only.
func (s InvoiceStatus) IsActive() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusPostponed
}

// IsUnpaid reports whether the record is an outstanding balance.
func (s InvoiceStatus) IsUnpaid() bool {
	return s == StatusPending || s == StatusPostponed
}

func (s InvoiceStatus) String() string {
	return string(s)
}

// ParseInvoiceStatus converts user input into an InvoiceStatus.
func ParseInvoiceStatus(v string) (InvoiceStatus, error) {
	s := InvoiceStatus(v)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown invoice status %q", v)
	}
	return s, nil
}

// PartnerRole is the capacity in which a partner earns commission.
type PartnerRole string

const (
	RoleAgent      PartnerRole = "agent"
	RoleTechnician PartnerRole = "technician"
)

// CommissionEntry is a commission computed when a payment was recorded.
// It is stored with the invoice and never recomputed afterwards.
type CommissionEntry struct {
	PartnerID       string          `json:"partnerId"`
	PartnerUsername string          `json:"partnerUsername"`
	Role            PartnerRole     `json:"role"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          decimal.Decimal `json:"amount"`
}

// InvoiceRecord is a single ledger entry: a generated invoice or a recorded payment.
type InvoiceRecord struct {
	ID            string            `json:"id"`
	InvoiceNumber string            `json:"invoiceNumber"`
	SubscriberID  string            `json:"subscriberId"`
	Amount        decimal.Decimal   `json:"amount"`
	Method        string            `json:"method"`
	Status        InvoiceStatus     `json:"status"`
	PeriodDate    time.Time         `json:"periodDate"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
	Notes         string            `json:"notes"`
	Commissions   []CommissionEntry `json:"commissions,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Period returns the billing period the record belongs to.
func (r InvoiceRecord) Period() Period {
	return PeriodOf(r.PeriodDate)
}

// AppendNote adds a line to the record's notes.
func (r *InvoiceRecord) AppendNote(note string) {
	if r.Notes == "" {
		r.Notes = note
		return
	}
	r.Notes += "\n" + note
}

// Clone returns a deep copy of the record.
func (r InvoiceRecord) Clone() InvoiceRecord {
	out := r
	if r.PaidAt != nil {
		t := *r.PaidAt
		out.PaidAt = &t
	}
	if r.Commissions != nil {
		out.Commissions = append([]CommissionEntry(nil), r.Commissions...)
	}
	return out
}
