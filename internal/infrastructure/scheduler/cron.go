package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
	"RepoSentinel/pkg/logger"
)

// CronScheduler fires the batch job once per day at a configured
// wall-clock time, in an explicit location.
type CronScheduler struct {
	dailyTime string
	location  *time.Location
	grace     time.Duration
	log       *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds the driver from scheduler configuration.
func NewCronScheduler(cfg config.SchedulerConfig, log *slog.Logger) *CronScheduler {
	return &CronScheduler{
		dailyTime: cfg.DailyTime,
		location:  cfg.Location(),
		grace:     cfg.StopGrace(),
		log:       log,
	}
}

// Start registers the daily trigger. Starting an already-running
// scheduler is a logged no-op; only one trigger instance can be active.
func (s *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return fmt.Errorf("scheduler job is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.log.Warn("scheduler already running", "daily_time", s.dailyTime)
		return nil
	}

	spec, err := cronSpec(s.dailyTime)
	if err != nil {
		return err
	}

	printf := cron.VerbosePrintfLogger(logger.New("scheduler"))
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cron.DiscardLogger),
		cron.WithChain(cron.Recover(printf), cron.SkipIfStillRunning(printf)),
	)

	id, err := c.AddFunc(spec, func() {
		job(time.Now().In(s.location))
	})
	if err != nil {
		return fmt.Errorf("register trigger %q: %w", spec, err)
	}

	c.Start()
	s.cron = c
	s.entryID = id
	s.log.Info("scheduler started", "daily_time", s.dailyTime, "location", s.location.String())
	return nil
}

// Stop halts the trigger and waits for an in-flight job up to the grace
// period; on expiry the job is abandoned and the abandonment is logged.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		s.log.Warn("scheduler not running")
		return nil
	}

	drained := s.cron.Stop()
	select {
	case <-drained.Done():
		s.log.Info("scheduler stopped")
	case <-time.After(s.grace):
		s.log.Warn("scheduler stop grace period expired, abandoning in-flight job", "grace", s.grace)
	case <-ctx.Done():
		s.log.Warn("scheduler stop cancelled, abandoning in-flight job", "error", ctx.Err())
	}

	s.cron = nil
	return nil
}

// Status reports lifecycle state and the next planned fire time.
func (s *CronScheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return domain.SchedulerStatus{State: domain.SchedulerStopped}
	}

	next := s.cron.Entry(s.entryID).Next
	return domain.SchedulerStatus{State: domain.SchedulerRunning, NextRun: &next}
}

// cronSpec converts "HH:MM" into a daily cron expression.
func cronSpec(dailyTime string) (string, error) {
	at, err := time.Parse("15:04", dailyTime)
	if err != nil {
		return "", fmt.Errorf("invalid daily time %q (want HH:MM): %w", dailyTime, err)
	}
	return fmt.Sprintf("%d %d * * *", at.Minute(), at.Hour()), nil
}
