package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-earnings-trader/internal/trader/config"
)

// slowCycles sleeps through every cycle and tracks how many invocations run
// at the same time.
type slowCycles struct {
	delay      time.Duration
	running    int32
	maxRunning int32
	calls      int32
}

func (c *slowCycles) run(context.Context) error {
	cur := atomic.AddInt32(&c.running, 1)
	for {
		observed := atomic.LoadInt32(&c.maxRunning)
		if cur <= observed || atomic.CompareAndSwapInt32(&c.maxRunning, observed, cur) {
			break
		}
	}
	time.Sleep(c.delay)
	atomic.AddInt32(&c.calls, 1)
	atomic.AddInt32(&c.running, -1)
	return nil
}

func (c *slowCycles) RunBMOScan(ctx context.Context) error         { return c.run(ctx) }
func (c *slowCycles) RunAMCScan(ctx context.Context) error         { return c.run(ctx) }
func (c *slowCycles) RunPositionUpdate(ctx context.Context) error  { return c.run(ctx) }
func (c *slowCycles) RunCalendarPreview(ctx context.Context) error { return c.run(ctx) }

func scheduleConfig(spec string) *config.Config {
	return &config.Config{
		Schedule: config.Schedule{
			TimeZone:        "UTC",
			BMOScan:         spec,
			AMCScan:         spec,
			PositionUpdate:  spec,
			CalendarPreview: spec,
		},
	}
}

func TestSchedulerNeverOverlapsCycles(t *testing.T) {
	// All four cycles fire together every 50ms but each takes longer than
	// the interval; an overrunning cycle must delay the next, not overlap it.
	cycles := &slowCycles{delay: 80 * time.Millisecond}
	svc := NewSchedulerService(scheduleConfig("@every 50ms"), testLogger(t), cycles)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	time.Sleep(600 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.GreaterOrEqual(t, atomic.LoadInt32(&cycles.calls), int32(2), "cycles should have fired")
	assert.Equal(t, int32(1), atomic.LoadInt32(&cycles.maxRunning),
		"no two cycle invocations may run concurrently")
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	cycles := &slowCycles{delay: time.Millisecond}
	svc := NewSchedulerService(scheduleConfig("@every 10ms"), testLogger(t), cycles)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}

func TestSchedulerRejectsUnknownTimeZone(t *testing.T) {
	cfg := scheduleConfig("@every 1h")
	cfg.Schedule.TimeZone = "Mars/Olympus"
	svc := NewSchedulerService(cfg, testLogger(t), &slowCycles{})

	require.Error(t, svc.Start(context.Background()))
}

func TestSchedulerRejectsInvalidCronSpec(t *testing.T) {
	cfg := scheduleConfig("@every 1h")
	cfg.Schedule.AMCScan = "not a cron spec"
	svc := NewSchedulerService(cfg, testLogger(t), &slowCycles{})

	require.Error(t, svc.Start(context.Background()))
}
