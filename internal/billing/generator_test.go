package billing

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbill/internal/ledger"
	"netbill/pkg/models"
)

func standardSource() *fakeSource {
	return &fakeSource{
		subscribers: []models.Subscriber{
			{SubscriberID: "alice", PlanName: "10M"},
			{SubscriberID: "bob", PlanName: "20M"},
			{SubscriberID: "carol", PlanName: "10M"},
		},
		plans: []models.Plan{
			{PlanName: "10M", Price: dec(150000)},
			{PlanName: "20M", Price: dec(250000)},
			{PlanName: "isolir"},
		},
	}
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV/25/01/007/0042", FormatInvoiceNumber(jan, 7, 42))
	assert.Equal(t, "INV/25/12/000/0001", FormatInvoiceNumber(models.Period{Year: 2025, Month: 12}, NoCustomerNumber, 1))
	assert.Equal(t, "INV/26/03/1234/12345", FormatInvoiceNumber(models.Period{Year: 2026, Month: 3}, 1234, 12345))
}

func TestGenerateIsIdempotent(t *testing.T) {
	store := newStore(t)
	gen := NewGenerator(store, standardSource(), customerMap{})
	ctx := context.Background()

	first, err := gen.Generate(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, 3, first.GeneratedCount)
	assert.Equal(t, 0, first.SkippedCount)
	assert.Len(t, first.CreatedInvoices, 3)

	second, err := gen.Generate(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, 0, second.GeneratedCount)
	assert.Equal(t, 3, second.SkippedCount)
	assert.Empty(t, second.CreatedInvoices)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGenerateMergesArrears(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	src := &fakeSource{
		subscribers: []models.Subscriber{{SubscriberID: "alice", PlanName: "10M"}},
		plans:       []models.Plan{{PlanName: "10M", Price: dec(150000)}},
	}
	janInv := seed(t, store, "alice", jan, 100000, models.StatusPending)

	res, err := NewGenerator(store, src, customerMap{}).Generate(ctx, feb)
	require.NoError(t, err)
	require.Equal(t, 1, res.GeneratedCount)

	febInv := res.CreatedInvoices[0]
	assert.True(t, dec(250000).Equal(febInv.Amount), "got %s", febInv.Amount)
	assert.Equal(t, models.StatusPending, febInv.Status)
	assert.Equal(t, feb.Start(), febInv.PeriodDate)
	assert.Contains(t, febInv.Notes, "arrears 100000")

	old, err := store.Find(ctx, ledger.Filter{SubscriberID: "alice", Period: &jan})
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, janInv.ID, old[0].ID)
	assert.Equal(t, models.StatusMerged, old[0].Status)
	assert.True(t, dec(100000).Equal(old[0].Amount), "merged amount is history and stays untouched")
	assert.Contains(t, old[0].Notes, "merged into "+febInv.InvoiceNumber)

	s, err := NewCalculator(store, customerMap{}, partnerMap{}).Settle(ctx, jan)
	require.NoError(t, err)
	assert.True(t, s.GrandTotal.Revenue.IsZero())
	assert.Equal(t, 0, s.UnpaidCount)

	drop, err := NewEnforcer(store, src, 2).CheckAndDrop(ctx, jan)
	require.NoError(t, err)
	assert.Equal(t, 0, drop.TotalUnpaid)
	assert.Empty(t, src.suspended)
}

func TestGenerateArrearsStatuses(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	src := &fakeSource{
		subscribers: []models.Subscriber{{SubscriberID: "alice", PlanName: "10M"}},
		plans:       []models.Plan{{PlanName: "10M", Price: dec(150000)}},
	}
	dec2024 := models.Period{Year: 2024, Month: 12}
	seed(t, store, "alice", dec2024, 50000, models.StatusPostponed)
	seed(t, store, "alice", jan, 150000, models.StatusCompleted)
	seed(t, store, "bob", jan, 999, models.StatusPending)

	res, err := NewGenerator(store, src, customerMap{}).Generate(ctx, feb)
	require.NoError(t, err)
	require.Len(t, res.CreatedInvoices, 1)
	assert.True(t, dec(200000).Equal(res.CreatedInvoices[0].Amount), "postponed carried, completed and other subscribers not")

	completed, err := store.Find(ctx, ledger.Filter{Statuses: []models.InvoiceStatus{models.StatusCompleted}})
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestGenerateSkipsUnpricedPlans(t *testing.T) {
	store := newStore(t)
	src := &fakeSource{
		subscribers: []models.Subscriber{
			{SubscriberID: "alice", PlanName: "10M"},
			{SubscriberID: "dave", PlanName: "isolir"},
			{SubscriberID: "erin", PlanName: "gone"},
		},
		plans: []models.Plan{
			{PlanName: "10M", Price: dec(150000)},
			{PlanName: "isolir"},
		},
	}

	res, err := NewGenerator(store, src, customerMap{}).Generate(context.Background(), jan)
	require.NoError(t, err)
	assert.Equal(t, 1, res.GeneratedCount)
	assert.Equal(t, 2, res.SkippedCount)
}

func TestGenerateInvoiceNumbers(t *testing.T) {
	store := newStore(t)
	customers := customerMap{
		"alice": {SubscriberID: "alice", CustomerNumber: 7},
		"bob":   {SubscriberID: "bob", CustomerNumber: 12},
	}

	res, err := NewGenerator(store, standardSource(), customers).Generate(context.Background(), jan)
	require.NoError(t, err)
	require.Len(t, res.CreatedInvoices, 3)

	assert.Equal(t, "INV/25/01/007/0001", res.CreatedInvoices[0].InvoiceNumber)
	assert.Equal(t, "INV/25/01/012/0002", res.CreatedInvoices[1].InvoiceNumber)
	assert.Equal(t, "INV/25/01/000/0003", res.CreatedInvoices[2].InvoiceNumber)
}

func TestGenerateSequenceIsMonotonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	ctx := context.Background()

	var seqs []int
	for _, p := range []models.Period{jan, feb, feb, mar} {
		// a fresh store per run, as separate process invocations would
		res, err := NewGenerator(openStore(path), standardSource(), customerMap{}).Generate(ctx, p)
		require.NoError(t, err)
		for _, inv := range res.CreatedInvoices {
			parts := strings.Split(inv.InvoiceNumber, "/")
			n, err := strconv.Atoi(parts[len(parts)-1])
			require.NoError(t, err)
			seqs = append(seqs, n)
		}
	}

	require.Len(t, seqs, 9)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1])
	}
}

func TestGenerateSourceOutageTouchesNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	src := standardSource()
	src.listErr = errRouterDown

	_, err := NewGenerator(store, src, customerMap{}).Generate(ctx, jan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, errRouterDown)

	var cerr *CollaboratorUnavailableError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "subscription source", cerr.Collaborator)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGenerateDirectoryOutageIsFatal(t *testing.T) {
	store := newStore(t)
	_, err := NewGenerator(store, standardSource(), brokenDirectory{}).Generate(context.Background(), jan)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
}
