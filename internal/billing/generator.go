// Package billing implements invoice generation, payment entry, commission
// settlement and auto-drop enforcement on top of the ledger.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"netbill/internal/ledger"
	"netbill/internal/logger"
	"netbill/pkg/models"
	"netbill/pkg/services"
)

// NoCustomerNumber is the customer number used in invoice numbers of
// subscribers that have no customer record yet.
const NoCustomerNumber = 0

// FormatInvoiceNumber renders INV/{YY}/{MM}/{customer}/{seq}.
func FormatInvoiceNumber(p models.Period, customerNumber, seq int) string {
	return fmt.Sprintf("INV/%02d/%02d/%03d/%04d", p.Year%100, int(p.Month), customerNumber, seq)
}

// GenerateResult summarizes a generation run.
type GenerateResult struct {
	Period          string                 `json:"period"`
	GeneratedCount  int                    `json:"generatedCount"`
	SkippedCount    int                    `json:"skippedCount"`
	CreatedInvoices []models.InvoiceRecord `json:"createdInvoices"`
}

// Generator creates the pending invoices of a billing period.
type Generator struct {
	ledger    *ledger.Store
	source    services.SubscriptionSource
	customers services.CustomerDirectory
}

// NewGenerator creates a Generator.
func NewGenerator(store *ledger.Store, source services.SubscriptionSource, customers services.CustomerDirectory) *Generator {
	return &Generator{ledger: store, source: source, customers: customers}
}

// Generate creates one pending invoice per billable subscriber for period,
// folding unpaid balances of earlier periods into it. Subscribers that
// already have an active invoice for period, or whose plan has no price, are
// skipped. The run is a single ledger transaction: it either lands whole or
// not at all.
func (g *Generator) Generate(ctx context.Context, period models.Period) (*GenerateResult, error) {
	log := logger.WithRun("generator", uuid.NewString(), period.String())

	subscribers, err := g.source.ListSubscribers(ctx)
	if err != nil {
		return nil, unavailable("subscription source", "list subscribers", err)
	}
	plans, err := g.source.ListPlans(ctx)
	if err != nil {
		return nil, unavailable("subscription source", "list plans", err)
	}
	customers, err := g.customers.Customers(ctx)
	if err != nil {
		return nil, unavailable("customer directory", "read customers", err)
	}

	prices := make(map[string]decimal.Decimal, len(plans))
	for _, p := range plans {
		prices[p.PlanName] = p.Price
	}

	log.Info().
		Int("subscribers", len(subscribers)).
		Int("plans", len(plans)).
		Msg("Generating invoices")

	result := &GenerateResult{Period: period.String(), CreatedInvoices: []models.InvoiceRecord{}}
	err = g.ledger.Transact(ctx, func(tx *ledger.Tx) error {
		for _, sub := range subscribers {
			if _, ok := tx.Active(sub.SubscriberID, period); ok {
				result.SkippedCount++
				continue
			}

			price := prices[sub.PlanName]
			if !price.IsPositive() {
				log.Debug().Str("subscriber", sub.SubscriberID).Str("plan", sub.PlanName).Msg("Plan has no billable price, skipping")
				result.SkippedCount++
				continue
			}

			inv, err := generateOne(tx, period, sub, price, customers[sub.SubscriberID].CustomerNumber)
			if errors.Is(err, ledger.ErrDuplicatePeriod) {
				result.SkippedCount++
				continue
			}
			if err != nil {
				return fmt.Errorf("generate %s: %w", sub.SubscriberID, err)
			}
			result.GeneratedCount++
			result.CreatedInvoices = append(result.CreatedInvoices, inv)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Invoice generation failed")
		return nil, err
	}

	log.Info().
		Int("generated", result.GeneratedCount).
		Int("skipped", result.SkippedCount).
		Msg("Invoice generation completed")
	return result, nil
}

func generateOne(tx *ledger.Tx, period models.Period, sub models.Subscriber, price decimal.Decimal, customerNumber int) (models.InvoiceRecord, error) {
	arrears := decimal.Zero
	var carried []models.InvoiceRecord
	for _, r := range tx.Find(ledger.Filter{
		SubscriberID: sub.SubscriberID,
		Statuses:     []models.InvoiceStatus{models.StatusPending, models.StatusPostponed},
	}) {
		if r.Period().Before(period) {
			arrears = arrears.Add(r.Amount)
			carried = append(carried, r)
		}
	}

	number := FormatInvoiceNumber(period, customerNumber, tx.NextSequence())
	inv := models.InvoiceRecord{
		InvoiceNumber: number,
		SubscriberID:  sub.SubscriberID,
		Amount:        price.Add(arrears),
		Status:        models.StatusPending,
		PeriodDate:    period.Start(),
	}
	if len(carried) > 0 {
		refs := make([]string, 0, len(carried))
		for _, r := range carried {
			refs = append(refs, invoiceRef(r))
		}
		inv.Notes = fmt.Sprintf("plan %s %s + arrears %s from %s", sub.PlanName, price, arrears, strings.Join(refs, ", "))
	}

	created, err := tx.Append(inv)
	if err != nil {
		return models.InvoiceRecord{}, err
	}

	merged := models.StatusMerged
	for _, r := range carried {
		if _, err := tx.Update(r.ID, ledger.Patch{
			Status: &merged,
			Note:   "merged into " + number,
		}); err != nil {
			return models.InvoiceRecord{}, err
		}
	}
	return created, nil
}

func invoiceRef(r models.InvoiceRecord) string {
	if r.InvoiceNumber != "" {
		return r.InvoiceNumber
	}
	return r.Period().String()
}
