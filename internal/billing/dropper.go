package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"netbill/internal/ledger"
	"netbill/internal/logger"
	"netbill/pkg/models"
	"netbill/pkg/services"
)

// DropFailure records a subscriber that could not be suspended.
type DropFailure struct {
	SubscriberID string `json:"subscriberId"`
	Error        string `json:"error"`
}

// DropResult summarizes an auto-drop run.
type DropResult struct {
	Period             string        `json:"period"`
	DroppedSubscribers []string      `json:"droppedSubscribers"`
	Failed             []DropFailure `json:"failed,omitempty"`
	TotalUnpaid        int           `json:"totalUnpaid"`
}

// Enforcer suspends subscribers with unpaid invoices.
type Enforcer struct {
	ledger  *ledger.Store
	source  services.SubscriptionSource
	workers int
	now     func() time.Time
}

// NewEnforcer creates an Enforcer that runs at most workers router calls at once.
func NewEnforcer(store *ledger.Store, source services.SubscriptionSource, workers int) *Enforcer {
	if workers < 1 {
		workers = 1
	}
	return &Enforcer{ledger: store, source: source, workers: workers, now: time.Now}
}

// CheckAndDrop suspends every subscriber with an unpaid invoice in period and
// terminates their active session. A failure on one subscriber is logged and
// leaves it out of DroppedSubscribers; it never aborts the others. Dropped
// subscribers get a note on their unpaid invoice, written in one ledger
// transaction after all router calls have finished.
func (e *Enforcer) CheckAndDrop(ctx context.Context, period models.Period) (*DropResult, error) {
	log := logger.WithRun("auto-drop", uuid.NewString(), period.String())

	unpaid, err := e.ledger.Find(ctx, ledger.Filter{
		Period:   &period,
		Statuses: []models.InvoiceStatus{models.StatusPending, models.StatusPostponed},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var targets []string
	for _, inv := range unpaid {
		if !seen[inv.SubscriberID] {
			seen[inv.SubscriberID] = true
			targets = append(targets, inv.SubscriberID)
		}
	}
	sort.Strings(targets)

	result := &DropResult{
		Period:             period.String(),
		DroppedSubscribers: []string{},
		TotalUnpaid:        len(targets),
	}
	if len(targets) == 0 {
		log.Info().Msg("No unpaid subscribers")
		return result, nil
	}

	log.Info().Int("unpaid", len(targets)).Int("workers", e.workers).Msg("Suspending unpaid subscribers")

	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, sub := range targets {
		g.Go(func() error {
			errs[i] = e.drop(ctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	for i, sub := range targets {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("subscriber", sub).Msg("Failed to suspend subscriber")
			result.Failed = append(result.Failed, DropFailure{SubscriberID: sub, Error: errs[i].Error()})
			continue
		}
		result.DroppedSubscribers = append(result.DroppedSubscribers, sub)
	}

	if len(result.DroppedSubscribers) > 0 {
		if err := e.noteSuspensions(ctx, period, result.DroppedSubscribers); err != nil {
			log.Error().Err(err).Msg("Subscribers suspended but ledger notes could not be saved")
			return result, err
		}
	}

	log.Info().
		Int("dropped", len(result.DroppedSubscribers)).
		Int("failed", len(result.Failed)).
		Msg("Auto-drop completed")
	return result, nil
}

func (e *Enforcer) drop(ctx context.Context, subscriberID string) error {
	if err := e.source.Suspend(ctx, subscriberID); err != nil {
		return unavailable("subscription source", "suspend", err)
	}
	if err := e.source.TerminateActiveSession(ctx, subscriberID); err != nil {
		return unavailable("subscription source", "terminate session", err)
	}
	return nil
}

func (e *Enforcer) noteSuspensions(ctx context.Context, period models.Period, subscribers []string) error {
	note := fmt.Sprintf("suspended by auto-drop on %s", e.now().UTC().Format(time.DateOnly))
	dropped := make(map[string]bool, len(subscribers))
	for _, s := range subscribers {
		dropped[s] = true
	}

	return e.ledger.Transact(ctx, func(tx *ledger.Tx) error {
		for _, inv := range tx.Find(ledger.Filter{
			Period:   &period,
			Statuses: []models.InvoiceStatus{models.StatusPending, models.StatusPostponed},
		}) {
			if !dropped[inv.SubscriberID] || strings.Contains(inv.Notes, note) {
				continue
			}
			if _, err := tx.Update(inv.ID, ledger.Patch{Note: note}); err != nil {
				return err
			}
		}
		return nil
	})
}
