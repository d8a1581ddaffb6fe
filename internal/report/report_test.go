package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

func sampleSettlement() *billing.Settlement {
	return &billing.Settlement{
		Period: "2025-03",
		Partners: []billing.PartnerSettlement{
			{
				PartnerID:            "p1",
				Username:             "budi",
				IsAgent:              true,
				IsTechnician:         true,
				Revenue:              decimal.NewFromInt(100000),
				AgentCommission:      decimal.NewFromInt(10000),
				TechnicianCommission: decimal.NewFromInt(5000),
				Commission:           decimal.NewFromInt(15000),
				PaidCount:            1,
			},
		},
		GrandTotal: billing.Totals{
			Revenue:    decimal.NewFromInt(100000),
			Commission: decimal.NewFromInt(15000),
			NetRevenue: decimal.NewFromInt(85000),
		},
		PaidCount: 1,
	}
}

func TestSettlementTables(t *testing.T) {
	tables := SettlementTables(sampleSettlement())
	require.Len(t, tables, 2)

	partners := tables[0]
	assert.Equal(t, "Partners 2025-03", partners.Name)
	require.Len(t, partners.Rows, 1)
	assert.Equal(t, "budi", partners.Rows[0][0])
	assert.Equal(t, 15000.0, partners.Rows[0][6])
	assert.Len(t, partners.Rows[0], len(partners.Headers))

	totals := tables[1]
	assert.Equal(t, []interface{}{"Net Revenue", 85000.0}, totals.Rows[2])
}

func TestYearTablesHasTwelveMonthsAndTotal(t *testing.T) {
	y := &billing.YearSettlement{Year: 2025, Total: billing.Totals{Revenue: decimal.NewFromInt(300000)}}
	for m := time.January; m <= time.December; m++ {
		y.Months = append(y.Months, billing.MonthlyAggregate{Month: m})
	}

	tables := YearTables(y)
	require.Len(t, tables, 2)
	assert.Len(t, tables[0].Rows, 13)
	assert.Equal(t, "January", tables[0].Rows[0][0])
	assert.Equal(t, []interface{}{"Total", 300000.0, 0.0, 0.0, "", ""}, tables[0].Rows[12])
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settlement.xlsx")
	paid := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)
	invoices := InvoiceTable("Invoices", []models.InvoiceRecord{{
		InvoiceNumber: "INV/25/03/001/0001",
		SubscriberID:  "alice",
		Amount:        decimal.NewFromInt(100000),
		Status:        models.StatusCompleted,
		PeriodDate:    time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		PaidAt:        &paid,
	}})

	tables := append(SettlementTables(sampleSettlement()), invoices)
	require.NoError(t, WriteWorkbook(path, tables...))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Partners 2025-03", "Totals 2025-03", "Invoices"}, f.GetSheetList())

	rows, err := f.GetRows("Partners 2025-03")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Partner", rows[0][0])
	assert.Equal(t, "budi", rows[1][0])
	assert.Equal(t, "15000", rows[1][6])

	rows, err = f.GetRows("Invoices")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-03 08:00", rows[1][6])
}

func TestWriteWorkbookRequiresTables(t *testing.T) {
	assert.Error(t, WriteWorkbook(filepath.Join(t.TempDir(), "empty.xlsx")))
}

func TestSheetNameIsTruncated(t *testing.T) {
	assert.Len(t, sheetName("Partners of a very long reporting period name"), maxSheetName)
	assert.Equal(t, "Totals", sheetName("Totals"))
}
