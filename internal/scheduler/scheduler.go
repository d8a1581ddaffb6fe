// Package scheduler runs the daily billing jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"netbill/internal/billing"
	"netbill/internal/logger"
	"netbill/pkg/models"
)

// Generator creates the invoices of a period.
type Generator interface {
	Generate(ctx context.Context, period models.Period) (*billing.GenerateResult, error)
}

// Dropper suspends unpaid subscribers of a period.
type Dropper interface {
	CheckAndDrop(ctx context.Context, period models.Period) (*billing.DropResult, error)
}

// Config controls when jobs fire. A zero day disables the job.
type Config struct {
	// Schedule is a cron spec with a seconds field; it only decides how often
	// the day check runs.
	Schedule    string
	DropDay     int
	GenerateDay int
	Location    *time.Location
}

// Scheduler evaluates the daily jobs on every cron tick. Generation succeeds
// at most once per period and auto-drop at most once per day; a failed job is
// retried on the next tick.
type Scheduler struct {
	cfg  Config
	gen  Generator
	drop Dropper
	now  func() time.Time
	cron *cron.Cron
	log  zerolog.Logger

	mu            sync.Mutex
	generatedFor  string
	invoicedOn    string
	lastDroppedOn string
}

// New creates a Scheduler.
func New(cfg Config, gen Generator, drop Dropper) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:  cfg,
		gen:  gen,
		drop: drop,
		now:  time.Now,
		cron: cron.NewWithLocation(cfg.Location),
		log:  logger.WithComponent("scheduler"),
	}
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.cron.AddFunc(s.cfg.Schedule, func() { s.Tick(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}

	s.log.Info().
		Str("schedule", s.cfg.Schedule).
		Int("drop_day", s.cfg.DropDay).
		Int("generate_day", s.cfg.GenerateDay).
		Msg("Scheduler started")

	s.cron.Start()
	// run once at startup so a restart during the day is not a missed day
	s.Tick(ctx)

	<-ctx.Done()
	s.cron.Stop()
	s.log.Info().Msg("Scheduler stopped")
	return nil
}

// Tick runs the jobs that are due and have not succeeded yet. It reports
// whether any job was attempted.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now().In(s.cfg.Location)
	today := now.Format(time.DateOnly)
	period := models.PeriodOf(now)
	day := now.Day()

	s.mu.Lock()
	defer s.mu.Unlock()

	attempted := false

	// generation is idempotent, so later days catch up a missed generate day
	if s.cfg.GenerateDay > 0 && day >= s.cfg.GenerateDay && s.generatedFor != period.String() {
		attempted = true
		res, err := s.gen.Generate(ctx, period)
		if err != nil {
			s.log.Error().Err(err).Str("period", period.String()).Msg("Scheduled invoice generation failed, retrying on next tick")
		} else {
			s.generatedFor = period.String()
			if res.GeneratedCount > 0 {
				s.invoicedOn = today
			}
			s.log.Info().Int("generated", res.GeneratedCount).Int("skipped", res.SkippedCount).Msg("Scheduled invoice generation done")
		}
	}

	if s.cfg.DropDay > 0 && day >= s.cfg.DropDay && s.lastDroppedOn != today {
		// subscribers invoiced today get until tomorrow to pay
		if s.invoicedOn == today {
			s.log.Info().Str("period", period.String()).Msg("Auto-drop deferred, invoices were issued today")
			return attempted
		}
		attempted = true
		res, err := s.drop.CheckAndDrop(ctx, period)
		if err != nil {
			s.log.Error().Err(err).Str("period", period.String()).Msg("Scheduled auto-drop failed, retrying on next tick")
		} else {
			s.lastDroppedOn = today
			s.log.Info().Int("dropped", len(res.DroppedSubscribers)).Int("unpaid", res.TotalUnpaid).Msg("Scheduled auto-drop done")
		}
	}
	return attempted
}
