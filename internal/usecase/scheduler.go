package usecase

import (
	"context"
	"log/slog"
	"time"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// BatchScheduler binds the recurring trigger to the daily batch run:
// process every enabled subscription, then generate and deliver digests.
type BatchScheduler struct {
	driver  ports.Scheduler
	manager *Manager
	reports *ReportGenerator
	log     *slog.Logger
}

// NewBatchScheduler returns a helper to start/stop the recurring job.
func NewBatchScheduler(driver ports.Scheduler, manager *Manager, reports *ReportGenerator, log *slog.Logger) *BatchScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &BatchScheduler{driver: driver, manager: manager, reports: reports, log: log}
}

// Start registers the daily batch job with the trigger driver.
func (s *BatchScheduler) Start(ctx context.Context) error {
	job := func(trigger time.Time) {
		s.log.Info("daily batch run triggered", "at", trigger.Format(time.RFC3339))
		s.RunOnce(ctx)
	}
	return s.driver.Start(ctx, job)
}

// Stop tears down the underlying trigger.
func (s *BatchScheduler) Stop(ctx context.Context) error {
	return s.driver.Stop(ctx)
}

// Status reports the trigger lifecycle state.
func (s *BatchScheduler) Status() domain.SchedulerStatus {
	return s.driver.Status()
}

// RunOnce executes one full batch pass: process all enabled
// subscriptions with duplicate avoidance, then report on the previous
// UTC day. Always logs a structured summary, partial failure included.
func (s *BatchScheduler) RunOnce(ctx context.Context) {
	results, err := s.manager.ProcessAll(ctx, nil, nil, true)
	if err != nil {
		s.log.Warn("batch processing interrupted", "error", err, "processed", len(results))
	}

	var succeeded, skipped, failed int
	for _, r := range results {
		succeeded += r.Succeeded
		skipped += r.Skipped
		failed += r.Failed
	}
	s.log.Info("batch processing finished",
		"subscriptions", len(results),
		"days_succeeded", succeeded,
		"days_skipped", skipped,
		"days_failed", failed,
	)

	if s.reports == nil {
		return
	}

	subs, err := s.manager.ListSubscriptions(ctx, "")
	if err != nil {
		s.log.Error("listing subscriptions for reports failed", "error", err)
		return
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.Add(-24 * time.Hour)
	paths := s.reports.GenerateAndDeliver(ctx, subs, from, to)
	s.log.Info("report generation finished", "reports", len(paths))
}
