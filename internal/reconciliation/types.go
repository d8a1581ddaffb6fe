// Package reconciliation imports externally kept payment sheets into the ledger.
package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

// DefaultSheet is the sheet payments are read from.
const DefaultSheet = "Payments"

// PaymentRow is a payment read from the Payments sheet.
type PaymentRow struct {
	Row          int             // 1-based sheet row
	SubscriberID string          // column A
	Amount       decimal.Decimal // column B
	Method       string          // column C
	PaidAt       *time.Time      // column D, empty means today
	Notes        string          // column E
	Period       *models.Period  // column F (YYYY-MM), empty means the month of PaidAt
}

// Input converts the row into a payment for the billing layer.
func (r PaymentRow) Input() billing.PaymentInput {
	return billing.PaymentInput{
		SubscriberID: r.SubscriberID,
		Amount:       r.Amount,
		Method:       r.Method,
		Notes:        r.Notes,
		Period:       r.Period,
		PaidAt:       r.PaidAt,
	}
}

// RowIssue is a row that was not recorded.
type RowIssue struct {
	Row          int    `json:"row"`
	SubscriberID string `json:"subscriberId,omitempty"`
	Reason       string `json:"reason"`
}

// RecordedPayment is a row that landed in the ledger.
type RecordedPayment struct {
	Row           int             `json:"row"`
	SubscriberID  string          `json:"subscriberId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

// ImportResult summarizes an import run.
type ImportResult struct {
	Sheet    string            `json:"sheet"`
	Rows     int               `json:"rows"`
	Recorded []RecordedPayment `json:"recorded"`
	Skipped  []RowIssue        `json:"skipped,omitempty"`
}
