package reconciliation

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"netbill/internal/billing"
	"netbill/internal/ledger"
	"netbill/pkg/models"
)

type staticRange struct {
	values [][]interface{}
	err    error
	asked  string
}

func (s *staticRange) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	s.asked = rangeSpec
	return s.values, s.err
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"150000", "150000", false},
		{"150.000", "150000", false},
		{"1.500.000", "1500000", false},
		{"150,000", "150000", false},
		{"Rp 150.000", "150000", false},
		{"Rp. 75.000", "75000", false},
		{"IDR 1,250,000", "1250000", false},
		{"150.000,50", "150000.5", false},
		{"1,234.56", "1234.56", false},
		{"12.5", "12.5", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.Local)
	for _, in := range []string{"2025-03-04", "04/03/2025", "4/3/2025", "04-03-2025", "04.03.2025"} {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := parseDate("March 4th")
	assert.Error(t, err)
}

func TestReadPayments(t *testing.T) {
	src := &staticRange{values: [][]interface{}{
		{"Subscriber", "Amount", "Method", "Paid", "Notes", "Period"},
		{"alice", "150.000", "cash", "2025-03-04", "", ""},
		{"", "", "", "", "", ""},
		{"bob", "abc", "cash"},
		{"carol", "100000", "transfer", "", "late", "2025-02"},
		{"", "50000"},
		{"dave", "100000", "cash", "", "", "Feb"},
	}}

	rows, issues, err := NewDataReader(src).ReadPayments(context.Background(), DefaultSheet)
	require.NoError(t, err)
	assert.Equal(t, "'Payments'!A:F", src.asked)

	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "alice", rows[0].SubscriberID)
	require.NotNil(t, rows[0].PaidAt)
	assert.Nil(t, rows[0].Period)

	assert.Equal(t, 5, rows[1].Row)
	require.NotNil(t, rows[1].Period)
	assert.Equal(t, models.Period{Year: 2025, Month: time.February}, *rows[1].Period)
	assert.Nil(t, rows[1].PaidAt)

	require.Len(t, issues, 3)
	assert.Equal(t, []int{4, 6, 7}, []int{issues[0].Row, issues[1].Row, issues[2].Row})
}

func TestReadPaymentsEmptySheet(t *testing.T) {
	_, _, err := NewDataReader(&staticRange{}).ReadPayments(context.Background(), DefaultSheet)
	assert.Error(t, err)
}

func TestWorkbookReadRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Payments"))
	require.NoError(t, f.SetSheetRow("Payments", "A1", &[]interface{}{"Subscriber", "Amount"}))
	require.NoError(t, f.SetSheetRow("Payments", "A2", &[]interface{}{"alice", "150000"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	values, err := NewWorkbook(path).ReadRange(context.Background(), "'Payments'!A:F")
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.Equal(t, "alice", values[1][0])

	_, err = NewWorkbook(path).ReadRange(context.Background(), "Missing!A:F")
	assert.Error(t, err)
}

type noDirectory struct{}

func (noDirectory) Customers(ctx context.Context) (map[string]models.CustomerRecord, error) {
	return map[string]models.CustomerRecord{}, nil
}

func (noDirectory) Partners(ctx context.Context) (map[string]models.PartnerRecord, error) {
	return map[string]models.PartnerRecord{}, nil
}

func TestImportRecordsAndSkips(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewStore(ledger.NewJSONFile(filepath.Join(t.TempDir(), "ledger.json")), ledger.WithLogger(zerolog.Nop()))
	payments := billing.NewPayments(store, noDirectory{}, noDirectory{})

	src := &staticRange{values: [][]interface{}{
		{"Subscriber", "Amount", "Method", "Paid", "Notes", "Period"},
		{"alice", "150000", "cash", "2025-03-01", "", ""},
		{"alice", "150000", "cash", "2025-03-09", "double entry", ""},
		{"bob", "0", "cash", "2025-03-04", "", ""},
		{"carol", "x", "cash", "2025-03-04", "", ""},
	}}
	im := NewImporter(NewDataReader(src), payments)

	dry, err := im.Import(ctx, DefaultSheet, true)
	require.NoError(t, err)
	assert.Empty(t, dry.Recorded)
	assert.Equal(t, 4, dry.Rows)

	res, err := im.Import(ctx, DefaultSheet, false)
	require.NoError(t, err)
	require.Len(t, res.Recorded, 1)
	assert.Equal(t, "alice", res.Recorded[0].SubscriberID)
	assert.Equal(t, "INV/25/03/000/0001", res.Recorded[0].InvoiceNumber)
	assert.Len(t, res.Skipped, 3)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) RecordPayment(ctx context.Context, in billing.PaymentInput) (models.InvoiceRecord, error) {
	f.calls++
	return models.InvoiceRecord{}, &ledger.PersistenceError{Op: "save", Err: errors.New("disk full")}
}

func TestImportStopsOnPersistenceError(t *testing.T) {
	src := &staticRange{values: [][]interface{}{
		{"Subscriber", "Amount"},
		{"alice", "150000"},
		{"bob", "150000"},
	}}
	rec := &failingRecorder{}

	_, err := NewImporter(NewDataReader(src), rec).Import(context.Background(), DefaultSheet, false)
	var perr *ledger.PersistenceError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, rec.calls)
}
