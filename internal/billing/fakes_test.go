package billing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"netbill/internal/ledger"
	"netbill/pkg/models"
)

var (
	fixedNow = time.Date(2025, time.March, 5, 10, 30, 0, 0, time.UTC)
	jan      = models.Period{Year: 2025, Month: time.January}
	feb      = models.Period{Year: 2025, Month: time.February}
	mar      = models.Period{Year: 2025, Month: time.March}

	errRouterDown = errors.New("dial tcp 10.0.0.1:8728: connection refused")
)

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	return openStore(filepath.Join(t.TempDir(), "ledger.json"))
}

func openStore(path string) *ledger.Store {
	return ledger.NewStore(ledger.NewJSONFile(path),
		ledger.WithClock(func() time.Time { return fixedNow }),
		ledger.WithLogger(zerolog.Nop()),
	)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func seed(t *testing.T, store *ledger.Store, sub string, p models.Period, amount int64, status models.InvoiceStatus) models.InvoiceRecord {
	t.Helper()
	rec, err := store.Append(context.Background(), models.InvoiceRecord{
		SubscriberID: sub,
		Amount:       dec(amount),
		Status:       status,
		PeriodDate:   p.Start(),
	})
	require.NoError(t, err)
	return rec
}

type fakeSource struct {
	mu          sync.Mutex
	subscribers []models.Subscriber
	plans       []models.Plan
	listErr     error
	suspendErr  map[string]error
	suspended   []string
	terminated  []string
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeSource) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subscribers, nil
}

func (f *fakeSource) ListPlans(ctx context.Context) ([]models.Plan, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.plans, nil
}

func (f *fakeSource) Suspend(ctx context.Context, subscriberID string) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.suspendErr[subscriberID]; err != nil {
		return err
	}
	f.suspended = append(f.suspended, subscriberID)
	return nil
}

func (f *fakeSource) TerminateActiveSession(ctx context.Context, subscriberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, subscriberID)
	return nil
}

type customerMap map[string]models.CustomerRecord

func (m customerMap) Customers(ctx context.Context) (map[string]models.CustomerRecord, error) {
	out := make(map[string]models.CustomerRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

type partnerMap map[string]models.PartnerRecord

func (m partnerMap) Partners(ctx context.Context) (map[string]models.PartnerRecord, error) {
	out := make(map[string]models.PartnerRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

type brokenDirectory struct{}

func (brokenDirectory) Customers(ctx context.Context) (map[string]models.CustomerRecord, error) {
	return nil, errors.New("customers.json: permission denied")
}

func (brokenDirectory) Partners(ctx context.Context) (map[string]models.PartnerRecord, error) {
	return nil, errors.New("partners.json: permission denied")
}

func agent(id string, rate int64) models.PartnerRecord {
	return models.PartnerRecord{PartnerID: id, Username: id, IsAgent: true, AgentRate: dec(rate)}
}

func technician(id string, rate int64) models.PartnerRecord {
	return models.PartnerRecord{PartnerID: id, Username: id, IsTechnician: true, TechnicianRate: dec(rate)}
}
