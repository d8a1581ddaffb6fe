package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"netbill/internal/ledger"
	"netbill/internal/logger"
	"netbill/pkg/models"
	"netbill/pkg/services"
)

// PaymentInput is a manually entered payment.
type PaymentInput struct {
	SubscriberID string          `json:"subscriberId" validate:"required,max=64"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method" validate:"omitempty,max=32"`
	Notes        string          `json:"notes" validate:"max=500"`

	// Period defaults to the period of PaidAt.
	Period *models.Period `json:"period,omitempty"`
	// PaidAt defaults to now.
	PaidAt *time.Time `json:"paidAt,omitempty"`
}

// Payments records payments and manual status changes.
type Payments struct {
	ledger    *ledger.Store
	customers services.CustomerDirectory
	partners  services.PartnerDirectory
	validate  *validator.Validate
	now       func() time.Time
	loc       *time.Location
	log       zerolog.Logger
}

// NewPayments creates a Payments service.
func NewPayments(store *ledger.Store, customers services.CustomerDirectory, partners services.PartnerDirectory) *Payments {
	return &Payments{
		ledger:    store,
		customers: customers,
		partners:  partners,
		validate:  validator.New(),
		now:       time.Now,
		loc:       time.Local,
		log:       logger.WithComponent("payments"),
	}
}

// RecordPayment settles the subscriber's invoice for the payment period. An
// unpaid invoice for that period is completed in place; otherwise a new
// completed invoice is created. A payment below the open invoice amount is
// rejected so the balance stays open for the next run to carry forward.
// Commissions are computed from the current directories and stored on the
// invoice.
func (p *Payments) RecordPayment(ctx context.Context, in PaymentInput) (models.InvoiceRecord, error) {
	if err := p.check(in); err != nil {
		return models.InvoiceRecord{}, err
	}

	paidAt := p.now().UTC()
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}
	// the billing month follows the operator's calendar, not UTC
	period := models.PeriodOf(paidAt.In(p.loc))
	if in.Period != nil {
		period = *in.Period
	}

	customers, err := p.customers.Customers(ctx)
	if err != nil {
		return models.InvoiceRecord{}, unavailable("customer directory", "read customers", err)
	}
	partners, err := p.partners.Partners(ctx)
	if err != nil {
		return models.InvoiceRecord{}, unavailable("partner directory", "read partners", err)
	}
	customer := customers[in.SubscriberID]
	commissions := computeCommissions(in.Amount, customer, partners)

	var out models.InvoiceRecord
	err = p.ledger.Transact(ctx, func(tx *ledger.Tx) error {
		existing, ok := tx.Active(in.SubscriberID, period)
		if ok && existing.Status == models.StatusCompleted {
			return &ledger.DuplicatePeriodError{
				SubscriberID: in.SubscriberID,
				Period:       period,
				ExistingID:   existing.ID,
			}
		}

		if ok && in.Amount.LessThan(existing.Amount) {
			return &ValidationError{
				Field:   "Amount",
				Value:   in.Amount.String(),
				Message: fmt.Sprintf("is below the open invoice %s amount %s", existing.InvoiceNumber, existing.Amount),
			}
		}

		if ok {
			completed := models.StatusCompleted
			method := in.Method
			amount := in.Amount
			note := in.Notes
			if !existing.Amount.Equal(in.Amount) {
				note = joinNote(fmt.Sprintf("invoiced %s, paid %s", existing.Amount, in.Amount), note)
			}
			var err error
			out, err = tx.Update(existing.ID, ledger.Patch{
				Status:      &completed,
				PaidAt:      &paidAt,
				Amount:      &amount,
				Method:      &method,
				Note:        note,
				Commissions: commissions,
			})
			return err
		}

		var err error
		out, err = tx.Append(models.InvoiceRecord{
			InvoiceNumber: FormatInvoiceNumber(period, customer.CustomerNumber, tx.NextSequence()),
			SubscriberID:  in.SubscriberID,
			Amount:        in.Amount,
			Method:        in.Method,
			Status:        models.StatusCompleted,
			PeriodDate:    period.Start(),
			PaidAt:        &paidAt,
			Notes:         in.Notes,
			Commissions:   commissions,
		})
		return err
	})
	if err != nil {
		return models.InvoiceRecord{}, err
	}

	p.log.Info().
		Str("subscriber", out.SubscriberID).
		Str("invoice", out.InvoiceNumber).
		Str("amount", out.Amount.String()).
		Str("period", period.String()).
		Msg("Payment recorded")
	return out, nil
}

// UpdateInvoiceStatus moves an invoice to status. paidAt is only used when
// entering completed. Merging is reserved for invoice generation.
func (p *Payments) UpdateInvoiceStatus(ctx context.Context, id string, status models.InvoiceStatus, paidAt *time.Time) (models.InvoiceRecord, error) {
	if id == "" {
		return models.InvoiceRecord{}, &ValidationError{Field: "id", Message: "is required"}
	}
	if !status.IsValid() {
		return models.InvoiceRecord{}, &ValidationError{Field: "status", Value: string(status), Message: "unknown status"}
	}
	if status == models.StatusMerged {
		return models.InvoiceRecord{}, &ValidationError{Field: "status", Value: string(status), Message: "merged is set by invoice generation only"}
	}

	rec, err := p.ledger.Update(ctx, id, ledger.Patch{Status: &status, PaidAt: paidAt})
	if err != nil {
		return models.InvoiceRecord{}, err
	}

	p.log.Info().Str("invoice", rec.InvoiceNumber).Str("status", rec.Status.String()).Msg("Invoice status updated")
	return rec, nil
}

func (p *Payments) check(in PaymentInput) error {
	if err := p.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{
				Field:   fe.Field(),
				Value:   fmt.Sprint(fe.Value()),
				Message: "failed " + fe.Tag() + " check",
			}
		}
		return &ValidationError{Field: "payment", Message: err.Error()}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "Amount", Value: in.Amount.String(), Message: "must be positive"}
	}
	return nil
}

func joinNote(a, b string) string {
	if b == "" {
		return a
	}
	return a + "\n" + b
}
