package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ranamudassir31/webpulse-ai/internal/logger"
	"github.com/ranamudassir31/webpulse-ai/internal/store"
)

// Retention defaults.
const (
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultSweepSchedule = "0 * * * *"
	sweepTimeout         = time.Minute
)

// RetentionSweeper periodically deletes terminal job records older than the
// retention window.
type RetentionSweeper struct {
	store     store.ResultStore
	retention time.Duration
	schedule  string
	metrics   Metrics
	log       logger.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewRetentionSweeper creates a sweeper. An empty schedule uses
// DefaultSweepSchedule; a non-positive retention uses DefaultRetention.
func NewRetentionSweeper(
	s store.ResultStore,
	retention time.Duration,
	schedule string,
	metrics Metrics,
	log logger.Logger,
) *RetentionSweeper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if log == nil {
		log = logger.NewNop()
	}

	// Standard 5-field cron parser (minute hour day month weekday) plus @every descriptors.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &RetentionSweeper{
		store:     s,
		retention: retention,
		schedule:  schedule,
		metrics:   metrics,
		log:       log,
		cron:      cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		now:       time.Now,
	}
}

// Start registers the sweep and starts the cron scheduler.
func (s *RetentionSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("Retention sweep failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.log.Info("Retention sweeper started",
		logger.String("schedule", s.schedule),
		logger.Duration("retention", s.retention),
	)
	return nil
}

// Stop stops the scheduler and waits for a running sweep.
func (s *RetentionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes expired job records once.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.DeleteJobsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	s.metrics.RetentionSwept(n)
	if n > 0 {
		s.log.Info("Retention sweep removed jobs", logger.Int("deleted", n))
	}
	return n, nil
}
