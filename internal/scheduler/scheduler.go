package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/reminder"
)

// ReminderRunner runs one reminder cycle.
type ReminderRunner interface {
	RunCycle(ctx context.Context, now time.Time) (reminder.Report, error)
}

// Sweeper removes expired cache entries.
type Sweeper interface {
	Sweep() int
}

type Config struct {
	Location     *time.Location
	ReminderCron string
	// SweepEvery is the cache sweep period in minutes.
	SweepEvery   int
	CycleTimeout time.Duration
}

// Scheduler triggers reminder cycles and cache sweeps.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	reminders ReminderRunner
	cache     Sweeper
	log       *zap.Logger
}

// New creates a new Scheduler. reminders may be nil when delivery is not configured.
func New(cfg Config, reminders ReminderRunner, cache Sweeper, log *zap.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ReminderCron == "" {
		cfg.ReminderCron = "* * * * *"
	}
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = 5
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := gocron.NewScheduler(cfg.Location)
	// A slow cycle must not be overlapped by the next tick.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		cfg:       cfg,
		reminders: reminders,
		cache:     cache,
		log:       log.Named("scheduler"),
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.reminders == nil {
		s.log.Info("no reminder runner configured; reminders are not scheduled")
	} else if _, err := s.scheduler.Cron(s.cfg.ReminderCron).Tag("reminders").Do(s.runReminders); err != nil {
		return err
	}

	if s.cache != nil {
		if _, err := s.scheduler.Every(s.cfg.SweepEvery).Minutes().Tag("cache-sweep").Do(s.sweep); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout)
	defer cancel()

	rep, err := s.reminders.RunCycle(ctx, time.Now())
	if err != nil {
		s.log.Error("reminder cycle failed", zap.String("cycle_id", rep.CycleID.String()), zap.Error(err))
	}
}

func (s *Scheduler) sweep() {
	if n := s.cache.Sweep(); n > 0 {
		s.log.Debug("cache sweep", zap.Int("removed", n))
	}
}
