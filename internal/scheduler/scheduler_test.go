package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

type recorder struct {
	generated []models.Period
	dropped   []models.Period
	err       error
	// created is reported as the generated count of every successful run
	created int
}

func (r *recorder) Generate(ctx context.Context, p models.Period) (*billing.GenerateResult, error) {
	r.generated = append(r.generated, p)
	if r.err != nil {
		return nil, r.err
	}
	return &billing.GenerateResult{Period: p.String(), GeneratedCount: r.created}, nil
}

func (r *recorder) CheckAndDrop(ctx context.Context, p models.Period) (*billing.DropResult, error) {
	r.dropped = append(r.dropped, p)
	if r.err != nil {
		return nil, r.err
	}
	return &billing.DropResult{Period: p.String()}, nil
}

func newTestScheduler(cfg Config, rec *recorder, now *time.Time) *Scheduler {
	cfg.Location = time.UTC
	s := New(cfg, rec, rec)
	s.now = func() time.Time { return *now }
	return s
}

func TestTickRunsJobsByDay(t *testing.T) {
	tests := []struct {
		name         string
		day          int
		wantGenerate bool
		wantDrop     bool
	}{
		{"before both", 1, false, false},
		{"generate day", 5, true, false},
		{"catch up before drop", 10, true, true},
		{"after drop day", 25, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			now := time.Date(2025, time.March, tt.day, 9, 0, 0, 0, time.UTC)
			s := newTestScheduler(Config{Schedule: "@hourly", DropDay: 10, GenerateDay: 5}, rec, &now)

			assert.Equal(t, tt.wantGenerate || tt.wantDrop, s.Tick(context.Background()))
			assert.Equal(t, tt.wantGenerate, len(rec.generated) == 1)
			assert.Equal(t, tt.wantDrop, len(rec.dropped) == 1)
			if tt.wantDrop {
				assert.Equal(t, models.Period{Year: 2025, Month: time.March}, rec.dropped[0])
			}
		})
	}
}

func TestTickRunsOncePerDay(t *testing.T) {
	rec := &recorder{}
	now := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(Config{Schedule: "@hourly", DropDay: 10}, rec, &now)
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	now = now.Add(5 * time.Hour)
	assert.False(t, s.Tick(ctx))
	now = now.Add(24 * time.Hour)
	assert.True(t, s.Tick(ctx))

	assert.Len(t, rec.dropped, 2)
}

func TestTickDisabledJobs(t *testing.T) {
	rec := &recorder{}
	now := time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)
	s := newTestScheduler(Config{Schedule: "@hourly"}, rec, &now)

	s.Tick(context.Background())
	assert.Empty(t, rec.generated)
	assert.Empty(t, rec.dropped)
}

func TestTickRetriesFailedJobs(t *testing.T) {
	rec := &recorder{err: errors.New("router unreachable")}
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(Config{Schedule: "@hourly", DropDay: 10, GenerateDay: 5}, rec, &now)
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	assert.Len(t, rec.generated, 1)
	assert.Len(t, rec.dropped, 1, "drop still runs after generation fails")

	rec.err = nil
	now = now.Add(time.Hour)
	assert.True(t, s.Tick(ctx))
	assert.Len(t, rec.generated, 2)
	assert.Len(t, rec.dropped, 2)

	now = now.Add(time.Hour)
	assert.False(t, s.Tick(ctx), "both jobs already succeeded")
	assert.Len(t, rec.generated, 2)
	assert.Len(t, rec.dropped, 2)
}

func TestTickCatchesUpMissedGenerateDay(t *testing.T) {
	rec := &recorder{err: errors.New("router unreachable")}
	now := time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(Config{Schedule: "@hourly", GenerateDay: 5}, rec, &now)
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	rec.err = nil
	now = now.Add(24 * time.Hour)
	assert.True(t, s.Tick(ctx))
	now = now.Add(24 * time.Hour)
	assert.False(t, s.Tick(ctx))

	march := models.Period{Year: 2025, Month: time.March}
	assert.Equal(t, []models.Period{march, march}, rec.generated)

	now = time.Date(2025, time.April, 5, 9, 0, 0, 0, time.UTC)
	assert.True(t, s.Tick(ctx))
	assert.Equal(t, models.Period{Year: 2025, Month: time.April}, rec.generated[2])
}

func TestTickDefersDropOnInvoicingDay(t *testing.T) {
	rec := &recorder{created: 3}
	now := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(Config{Schedule: "@hourly", DropDay: 10, GenerateDay: 5}, rec, &now)
	ctx := context.Background()

	assert.True(t, s.Tick(ctx))
	assert.Len(t, rec.generated, 1)
	assert.Empty(t, rec.dropped)

	now = now.Add(time.Hour)
	assert.False(t, s.Tick(ctx))
	assert.Empty(t, rec.dropped)

	now = now.Add(24 * time.Hour)
	assert.True(t, s.Tick(ctx))
	assert.Len(t, rec.generated, 1)
	assert.Len(t, rec.dropped, 1)
}

func TestRunRejectsBadSchedule(t *testing.T) {
	s := New(Config{Schedule: "every day"}, &recorder{}, &recorder{})
	err := s.Run(context.Background())
	assert.Error(t, err)
}
