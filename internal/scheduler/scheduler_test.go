package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/pkg/config"
)

type countingSweeper struct {
	runs       atomic.Int64
	dispatched int
}

func (c *countingSweeper) Sweep(ctx context.Context) (int, error) {
	c.runs.Add(1)
	return c.dispatched, nil
}

type recordingObserver struct {
	sweeps []string
}

func (r *recordingObserver) ObserveSweep(name string, duration time.Duration, dispatched int) {
	r.sweeps = append(r.sweeps, name)
}

func TestSchedulerRunsStartupSweep(t *testing.T) {
	deadlines := &countingSweeper{dispatched: 2}
	trials := &countingSweeper{}
	obs := &recordingObserver{}

	s := New(deadlines, trials, obs, nil, config.EnvDevelopment, config.SchedulerConfig{
		DevInterval:  time.Hour,
		StartupDelay: 10 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return deadlines.runs.Load() >= 1 && trials.runs.Load() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerIntervalModeTicks(t *testing.T) {
	deadlines := &countingSweeper{}
	trials := &countingSweeper{}

	s := New(deadlines, trials, nil, nil, config.EnvDevelopment, config.SchedulerConfig{
		DevInterval:  20 * time.Millisecond,
		StartupDelay: time.Hour, // keep the startup kick out of this test
	})
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return deadlines.runs.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerStopWaitsForGoroutines(t *testing.T) {
	deadlines := &countingSweeper{}
	trials := &countingSweeper{}

	s := New(deadlines, trials, nil, nil, config.EnvDevelopment, config.SchedulerConfig{
		DevInterval:  10 * time.Millisecond,
		StartupDelay: time.Hour,
	})
	require.NoError(t, s.Start())
	s.Stop()

	runs := deadlines.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, runs, deadlines.runs.Load())
}

func TestSchedulerProductionRejectsBadCron(t *testing.T) {
	s := New(&countingSweeper{}, &countingSweeper{}, nil, nil, config.EnvProduction, config.SchedulerConfig{
		DeadlineCrons: []string{"not a cron"},
	})
	require.Error(t, s.Start())
}
