package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
)

// Scheduler triggers periodic scan sweeps on a cron cadence.
type Scheduler interface {
	// Start registers the sweep job and begins the cron loop. It returns an
	// error when the configured cron expression does not parse.
	Start() error

	// Stop halts the cron loop and waits for an in-flight sweep to finish,
	// or until the context is done.
	Stop(ctx context.Context)
}

type cronScheduler struct {
	pipeline Pipeline
	cronSpec string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewScheduler creates a cron-backed scheduler that runs a full scan sweep
// on the configured cadence.
func NewScheduler(
	pipeline Pipeline,
	cfg *config.SchedulerConfig,
	logger *zap.Logger,
) Scheduler {
	return &cronScheduler{
		pipeline: pipeline,
		cronSpec: cfg.CronSpec,
		cron:     cron.New(),
		logger:   logger.Named("scheduler"),
	}
}

var _ Scheduler = (*cronScheduler)(nil)

func (s *cronScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cronSpec, s.runSweep); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.cronSpec, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.String("cron_spec", s.cronSpec))
	return nil
}

func (s *cronScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with a sweep still running")
	}
}

// runSweep is the cron entry point. Cron gives jobs no context, so the sweep
// runs under the background context and relies on the pipeline's own
// per-stage timeouts.
func (s *cronScheduler) runSweep() {
	result, err := s.pipeline.RunAll(context.Background())
	if err != nil {
		s.logger.Error("Scheduled scan sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("Scheduled scan sweep completed",
		zap.Int("scanned", result.Scanned),
		zap.Int("changed", result.Changed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
}
