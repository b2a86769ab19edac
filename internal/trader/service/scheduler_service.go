package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
)

// SchedulerService drives the daily cycles on cron schedules evaluated in the
// exchange time zone, so the cycle times track the market through DST shifts.
type SchedulerService interface {
	Start(ctx context.Context) error
}

type schedulerService struct {
	cfg    *config.Config
	log    *logger.Logger
	cycles CycleService

	// mu serializes cycle runs: cron fires every job on its own goroutine,
	// so without it an overrunning scan would overlap the position update.
	mu sync.Mutex
}

// NewSchedulerService creates the cron scheduler.
func NewSchedulerService(cfg *config.Config, log *logger.Logger, cycles CycleService) SchedulerService {
	return &schedulerService{
		cfg:    cfg,
		log:    log,
		cycles: cycles,
	}
}

// Start registers the cycle jobs and blocks until the context is cancelled.
// A shared mutex serializes the cycles, so an overrunning cycle delays the
// next slot rather than running concurrently with it.
func (s *schedulerService) Start(ctx context.Context) error {
	location, err := time.LoadLocation(s.cfg.Schedule.TimeZone)
	if err != nil {
		return fmt.Errorf("load schedule time zone %q: %w", s.cfg.Schedule.TimeZone, err)
	}

	runner := cron.New(cron.WithLocation(location))

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{common.CycleBMOScan, s.cfg.Schedule.BMOScan, s.cycles.RunBMOScan},
		{common.CycleAMCScan, s.cfg.Schedule.AMCScan, s.cycles.RunAMCScan},
		{common.CyclePositionUpdate, s.cfg.Schedule.PositionUpdate, s.cycles.RunPositionUpdate},
		{common.CycleCalendarPreview, s.cfg.Schedule.CalendarPreview, s.cycles.RunCalendarPreview},
	}

	for _, job := range jobs {
		name, run := job.name, job.run
		if _, err := runner.AddFunc(job.spec, func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			s.log.Info("Cycle triggered", logger.StringField("cycle", name))
			if err := run(ctx); err != nil {
				s.log.Error("Cycle failed",
					logger.StringField("cycle", name),
					logger.ErrorField(err))
				return
			}
			s.log.Info("Cycle completed", logger.StringField("cycle", name))
		}); err != nil {
			return fmt.Errorf("register %s schedule %q: %w", job.name, job.spec, err)
		}
		s.log.Info("Registered cycle schedule",
			logger.StringField("cycle", job.name),
			logger.StringField("cron", job.spec),
			logger.StringField("time_zone", s.cfg.Schedule.TimeZone))
	}

	runner.Start()
	<-ctx.Done()

	s.log.Info("Stopping scheduler")
	<-runner.Stop().Done()
	return nil
}
