package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbill/pkg/models"
)

func sampleDocument() *Document {
	paid := time.Date(2025, time.February, 3, 9, 15, 0, 0, time.UTC)
	created := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
	return &Document{
		Sequence: 3,
		Invoices: []models.InvoiceRecord{
			{
				ID:            "a1",
				InvoiceNumber: "INV/25/01/001/0001",
				SubscriberID:  "alice",
				Amount:        decimal.NewFromInt(100000),
				Status:        models.StatusMerged,
				PeriodDate:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
				Notes:         "merged into INV/25/02/001/0002",
				CreatedAt:     created,
				UpdatedAt:     created,
			},
			{
				ID:            "a2",
				InvoiceNumber: "INV/25/02/001/0002",
				SubscriberID:  "alice",
				Amount:        decimal.NewFromInt(250000),
				Method:        "cash",
				Status:        models.StatusCompleted,
				PeriodDate:    time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
				PaidAt:        &paid,
				Commissions: []models.CommissionEntry{
					{PartnerID: "p1", PartnerUsername: "budi", Role: models.RoleAgent, Rate: decimal.NewFromInt(10), Amount: decimal.NewFromInt(25000)},
					{PartnerID: "p1", PartnerUsername: "budi", Role: models.RoleTechnician, Rate: decimal.RequireFromString("2.5"), Amount: decimal.NewFromInt(6250)},
				},
				CreatedAt: created,
				UpdatedAt: paid,
			},
			{
				ID:            "b1",
				InvoiceNumber: "INV/25/02/000/0003",
				SubscriberID:  "bob",
				Amount:        decimal.NewFromInt(150000),
				Status:        models.StatusPostponed,
				PeriodDate:    time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
				CreatedAt:     created,
				UpdatedAt:     created,
			},
		},
	}
}

func TestJSONFileRoundTripIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ledger.json")
	file := NewJSONFile(path)

	require.NoError(t, file.Save(ctx, sampleDocument()))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := file.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, file.Save(ctx, loaded))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestJSONFileMissingIsEmpty(t *testing.T) {
	doc, err := NewJSONFile(filepath.Join(t.TempDir(), "absent.json")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Sequence)
	assert.NotNil(t, doc.Invoices)
	assert.Empty(t, doc.Invoices)
}

func TestJSONFileCorruptIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewJSONFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLiteRoundTripMatchesJSON(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	want, err := MarshalDocument(sampleDocument())
	require.NoError(t, err)

	require.NoError(t, db.Save(ctx, sampleDocument()))
	loaded, err := db.Load(ctx)
	require.NoError(t, err)

	got, err := MarshalDocument(loaded)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	// a second save replaces rather than accumulates
	require.NoError(t, db.Save(ctx, loaded))
	again, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Invoices, 3)
	assert.Equal(t, 3, again.Sequence)
}

func TestSQLiteBacksStore(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := newTestStore(db)
	jan := models.Period{Year: 2025, Month: time.January}

	_, err = store.Append(ctx, pending("alice", jan, 100))
	require.NoError(t, err)
	_, err = store.Append(ctx, pending("alice", jan, 100))
	assert.ErrorIs(t, err, ErrDuplicatePeriod)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
