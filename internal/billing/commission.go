package billing

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"netbill/internal/ledger"
	"netbill/pkg/models"
	"netbill/pkg/services"
)

var hundred = decimal.NewFromInt(100)

// Totals is a revenue/commission aggregate.
type Totals struct {
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	NetRevenue decimal.Decimal `json:"netRevenue"`
}

func (t *Totals) add(o Totals) {
	t.Revenue = t.Revenue.Add(o.Revenue)
	t.Commission = t.Commission.Add(o.Commission)
	t.NetRevenue = t.Revenue.Sub(t.Commission)
}

// PartnerSettlement is one partner's share of a period.
type PartnerSettlement struct {
	PartnerID            string          `json:"partnerId"`
	Username             string          `json:"username"`
	IsAgent              bool            `json:"isAgent"`
	IsTechnician         bool            `json:"isTechnician"`
	Revenue              decimal.Decimal `json:"revenue"`
	AgentCommission      decimal.Decimal `json:"agentCommission"`
	TechnicianCommission decimal.Decimal `json:"technicianCommission"`
	Commission           decimal.Decimal `json:"commission"`
	PaidCount            int             `json:"paidCount"`
	UnpaidCount          int             `json:"unpaidCount"`
}

// Settlement is the commission settlement of one period.
type Settlement struct {
	Period       string              `json:"period"`
	Partners     []PartnerSettlement `json:"partners"`
	Unassigned   decimal.Decimal     `json:"unassignedRevenue"`
	GrandTotal   Totals              `json:"grandTotal"`
	PaidCount    int                 `json:"paidCount"`
	UnpaidCount  int                 `json:"unpaidCount"`
	UnpaidAmount decimal.Decimal     `json:"unpaidAmount"`
}

// MonthlyAggregate is one month of a yearly settlement.
type MonthlyAggregate struct {
	Totals
	Month       time.Month `json:"month"`
	PaidCount   int        `json:"paidCount"`
	UnpaidCount int        `json:"unpaidCount"`
}

// YearSettlement holds the twelve monthly aggregates of a year plus
// per-partner totals over the whole year.
type YearSettlement struct {
	Year     int                 `json:"year"`
	Months   []MonthlyAggregate  `json:"months"`
	Partners []PartnerSettlement `json:"partners"`
	Total    Totals              `json:"total"`
}

// Calculator derives partner settlements from the ledger. It never writes.
type Calculator struct {
	ledger    *ledger.Store
	customers services.CustomerDirectory
	partners  services.PartnerDirectory
}

// NewCalculator creates a Calculator.
func NewCalculator(store *ledger.Store, customers services.CustomerDirectory, partners services.PartnerDirectory) *Calculator {
	return &Calculator{ledger: store, customers: customers, partners: partners}
}

// Settle computes the settlement for period.
func (c *Calculator) Settle(ctx context.Context, period models.Period) (*Settlement, error) {
	invoices, err := c.ledger.Find(ctx, ledger.Filter{Period: &period, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	customers, partners, err := c.directories(ctx)
	if err != nil {
		return nil, err
	}

	s := settle(invoices, customers, partners)
	s.Period = period.String()
	return s, nil
}

// SettleYear computes the twelve monthly aggregates of year.
func (c *Calculator) SettleYear(ctx context.Context, year int) (*YearSettlement, error) {
	all, err := c.ledger.Find(ctx, ledger.Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	customers, partners, err := c.directories(ctx)
	if err != nil {
		return nil, err
	}

	byMonth := make(map[time.Month][]models.InvoiceRecord)
	var inYear []models.InvoiceRecord
	for _, inv := range all {
		p := inv.Period()
		if p.Year != year {
			continue
		}
		byMonth[p.Month] = append(byMonth[p.Month], inv)
		inYear = append(inYear, inv)
	}

	out := &YearSettlement{Year: year, Months: make([]MonthlyAggregate, 0, 12)}
	for m := time.January; m <= time.December; m++ {
		s := settle(byMonth[m], customers, partners)
		out.Months = append(out.Months, MonthlyAggregate{
			Month:       m,
			Totals:      s.GrandTotal,
			PaidCount:   s.PaidCount,
			UnpaidCount: s.UnpaidCount,
		})
		out.Total.add(s.GrandTotal)
	}
	out.Partners = settle(inYear, customers, partners).Partners
	return out, nil
}

func (c *Calculator) directories(ctx context.Context) (map[string]models.CustomerRecord, map[string]models.PartnerRecord, error) {
	customers, err := c.customers.Customers(ctx)
	if err != nil {
		return nil, nil, unavailable("customer directory", "read customers", err)
	}
	partners, err := c.partners.Partners(ctx)
	if err != nil {
		return nil, nil, unavailable("partner directory", "read partners", err)
	}
	return customers, partners, nil
}

func settle(invoices []models.InvoiceRecord, customers map[string]models.CustomerRecord, partners map[string]models.PartnerRecord) *Settlement {
	acc := make(map[string]*PartnerSettlement)
	get := func(id, username string) *PartnerSettlement {
		if ps, ok := acc[id]; ok {
			return ps
		}
		ps := &PartnerSettlement{PartnerID: id, Username: username}
		if p, ok := partners[id]; ok {
			ps.Username = p.Username
			ps.IsAgent = p.IsAgent
			ps.IsTechnician = p.IsTechnician
		}
		acc[id] = ps
		return ps
	}
	for id, p := range partners {
		if p.IsAgent || p.IsTechnician {
			get(id, p.Username)
		}
	}

	out := &Settlement{}
	for _, inv := range invoices {
		if !inv.Status.IsActive() {
			continue
		}
		entries := commissionsOf(inv, customers[inv.SubscriberID], partners)
		beneficiaries := attributeRevenue(entries)
		paid := inv.Status == models.StatusCompleted

		for _, pid := range beneficiaries {
			ps := get(pid, usernameOf(entries, pid))
			if paid {
				ps.PaidCount++
				ps.Revenue = ps.Revenue.Add(inv.Amount)
			} else {
				ps.UnpaidCount++
			}
		}

		if !paid {
			out.UnpaidCount++
			out.UnpaidAmount = out.UnpaidAmount.Add(inv.Amount)
			continue
		}

		out.PaidCount++
		out.GrandTotal.Revenue = out.GrandTotal.Revenue.Add(inv.Amount)
		if len(beneficiaries) == 0 {
			out.Unassigned = out.Unassigned.Add(inv.Amount)
		}
		for _, e := range entries {
			ps := get(e.PartnerID, e.PartnerUsername)
			switch e.Role {
			case models.RoleAgent:
				ps.AgentCommission = ps.AgentCommission.Add(e.Amount)
			case models.RoleTechnician:
				ps.TechnicianCommission = ps.TechnicianCommission.Add(e.Amount)
			}
			ps.Commission = ps.Commission.Add(e.Amount)
			out.GrandTotal.Commission = out.GrandTotal.Commission.Add(e.Amount)
		}
	}
	out.GrandTotal.NetRevenue = out.GrandTotal.Revenue.Sub(out.GrandTotal.Commission)

	out.Partners = make([]PartnerSettlement, 0, len(acc))
	for _, ps := range acc {
		out.Partners = append(out.Partners, *ps)
	}
	sort.Slice(out.Partners, func(i, j int) bool {
		a, b := out.Partners[i], out.Partners[j]
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.PartnerID < b.PartnerID
	})
	return out
}

// commissionsOf returns the commission entries of an invoice. Entries stored
// on the invoice when the payment was recorded take precedence over the
// current directory.
func commissionsOf(inv models.InvoiceRecord, customer models.CustomerRecord, partners map[string]models.PartnerRecord) []models.CommissionEntry {
	if inv.Commissions != nil {
		return inv.Commissions
	}
	return computeCommissions(inv.Amount, customer, partners)
}

// computeCommissions resolves the customer's agent and technician against
// the partner directory. A role only pays when the partner holds it.
func computeCommissions(amount decimal.Decimal, customer models.CustomerRecord, partners map[string]models.PartnerRecord) []models.CommissionEntry {
	var out []models.CommissionEntry
	if p, ok := partners[customer.AgentID]; ok && customer.AgentID != "" && p.IsAgent {
		out = append(out, commissionEntry(p, models.RoleAgent, p.AgentRate, amount))
	}
	if p, ok := partners[customer.TechnicianID]; ok && customer.TechnicianID != "" && p.IsTechnician {
		out = append(out, commissionEntry(p, models.RoleTechnician, p.TechnicianRate, amount))
	}
	return out
}

func commissionEntry(p models.PartnerRecord, role models.PartnerRole, rate, amount decimal.Decimal) models.CommissionEntry {
	return models.CommissionEntry{
		PartnerID:       p.PartnerID,
		PartnerUsername: p.Username,
		Role:            role,
		Rate:            rate,
		Amount:          amount.Mul(rate).Div(hundred).Round(2),
	}
}

// attributeRevenue returns the partners an invoice's revenue is attributed
// to, each exactly once. A partner who is both agent and technician for the
// same customer earns both commissions but counts the revenue once. Both the
// per-partner and the grand total aggregation use this rule.
func attributeRevenue(entries []models.CommissionEntry) []string {
	var ids []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.PartnerID] {
			continue
		}
		seen[e.PartnerID] = true
		ids = append(ids, e.PartnerID)
	}
	return ids
}

func usernameOf(entries []models.CommissionEntry, partnerID string) string {
	for _, e := range entries {
		if e.PartnerID == partnerID {
			return e.PartnerUsername
		}
	}
	return partnerID
}
