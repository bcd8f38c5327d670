package scheduler

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RepoSentinel/internal/config"
	"RepoSentinel/internal/domain"
)

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{DailyTime: "02:00", StopGraceSeconds: 1}
}

func TestCronSpec(t *testing.T) {
	t.Parallel()

	spec, err := cronSpec("02:30")
	require.NoError(t, err)
	assert.Equal(t, "30 2 * * *", spec)

	_, err = cronSpec("25:00")
	assert.Error(t, err)

	_, err = cronSpec("nope")
	assert.Error(t, err)
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(testConfig(), slog.Default())
	assert.Equal(t, domain.SchedulerStopped, s.Status().State)

	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))
	status := s.Status()
	assert.Equal(t, domain.SchedulerRunning, status.State)
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now()))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, domain.SchedulerStopped, s.Status().State)
}

func TestStartTwiceIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(testConfig(), slog.Default())
	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))
	require.NoError(t, s.Start(context.Background(), func(time.Time) {}))

	first := s.Status()
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, domain.SchedulerRunning, first.State)
}

func TestStopWhenStoppedIsNoOp(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(testConfig(), slog.Default())
	require.NoError(t, s.Stop(context.Background()))
}

func TestInvalidDailyTimeRejectedOnStart(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DailyTime = "99:99"
	s := NewCronScheduler(cfg, slog.Default())
	err := s.Start(context.Background(), func(time.Time) {})
	require.Error(t, err)
	assert.Equal(t, domain.SchedulerStopped, s.Status().State)
}
