package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const runTimeout = 5 * time.Minute

// Scheduler runs the reconciler on a cron schedule, skipping a tick while the previous run is
// still going.
type Scheduler struct {
	cron *cron.Cron
	job  ReconcileService
}

func NewScheduler(job ReconcileService, schedule string) (*Scheduler, error) {
	logger := log.With().Str("component", "reconcile").Logger()
	cronLogger := cron.PrintfLogger(&logger)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		job: job,
	}
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	log.Info().Str("schedule", schedule).Msg("counter reconciliation scheduled")
	return s, nil
}

// RunOnce performs a single pass and logs the outcome.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.job.Reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Int("repaired", report.Repaired).Msg("counter reconciliation failed")
		return
	}
	log.Info().
		Int("checked", report.Checked).
		Int("repaired", report.Repaired).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("counter reconciliation finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running pass to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("counter reconciliation still running at shutdown")
	}
}
