// Package report renders settlements as tables for spreadsheet export.
package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

// Table is one sheet of a report.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// SettlementTables renders a period settlement as a partner sheet and a totals sheet.
func SettlementTables(s *billing.Settlement) []Table {
	partners := Table{
		Name: "Partners " + s.Period,
		Headers: []string{
			"Partner", "Agent", "Technician", "Revenue", "Agent Commission",
			"Technician Commission", "Commission", "Paid", "Unpaid",
		},
	}
	for _, p := range s.Partners {
		partners.Rows = append(partners.Rows, []interface{}{
			p.Username,
			yesNo(p.IsAgent),
			yesNo(p.IsTechnician),
			money(p.Revenue),
			money(p.AgentCommission),
			money(p.TechnicianCommission),
			money(p.Commission),
			p.PaidCount,
			p.UnpaidCount,
		})
	}

	totals := Table{
		Name:    "Totals " + s.Period,
		Headers: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Revenue", money(s.GrandTotal.Revenue)},
			{"Commission", money(s.GrandTotal.Commission)},
			{"Net Revenue", money(s.GrandTotal.NetRevenue)},
			{"Unassigned Revenue", money(s.Unassigned)},
			{"Paid Invoices", s.PaidCount},
			{"Unpaid Invoices", s.UnpaidCount},
			{"Unpaid Amount", money(s.UnpaidAmount)},
		},
	}
	return []Table{partners, totals}
}

// YearTables renders a yearly settlement as a monthly sheet and a partner sheet.
func YearTables(y *billing.YearSettlement) []Table {
	months := Table{
		Name:    fmt.Sprintf("Months %d", y.Year),
		Headers: []string{"Month", "Revenue", "Commission", "Net Revenue", "Paid", "Unpaid"},
	}
	for _, m := range y.Months {
		months.Rows = append(months.Rows, []interface{}{
			m.Month.String(),
			money(m.Revenue),
			money(m.Commission),
			money(m.NetRevenue),
			m.PaidCount,
			m.UnpaidCount,
		})
	}
	months.Rows = append(months.Rows, []interface{}{
		"Total", money(y.Total.Revenue), money(y.Total.Commission), money(y.Total.NetRevenue), "", "",
	})

	partners := SettlementTables(&billing.Settlement{Period: fmt.Sprint(y.Year), Partners: y.Partners})[0]
	return []Table{months, partners}
}

// InvoiceTable lists ledger records.
func InvoiceTable(name string, invoices []models.InvoiceRecord) Table {
	t := Table{
		Name:    name,
		Headers: []string{"Invoice", "Subscriber", "Period", "Amount", "Status", "Method", "Paid At", "Notes"},
	}
	for _, inv := range invoices {
		paid := ""
		if inv.PaidAt != nil {
			paid = inv.PaidAt.Format("2006-01-02 15:04")
		}
		t.Rows = append(t.Rows, []interface{}{
			inv.InvoiceNumber,
			inv.SubscriberID,
			inv.Period().String(),
			money(inv.Amount),
			inv.Status.String(),
			inv.Method,
			paid,
			inv.Notes,
		})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
