package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-to-mastodon/internal/weather"
)

// Runner is the pipeline entry point the scheduler drives.
type Runner interface {
	RunOnce(ctx context.Context, trigger weather.Trigger) weather.RunResult
	Debugf(ctx context.Context, format string, args ...any)
}

// Scheduler periodically triggers a pipeline run.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *gocron.Job
	runner    Runner
	interval  time.Duration
	name      string
	logger    *slog.Logger

	// ctx is handed to scheduled runs and cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. name labels the cadence in logs.
func New(name string, interval time.Duration, runner Runner, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		name:      name,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	job, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.tick)
	if err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}
	s.job = job

	s.scheduler.StartAsync()
	s.runner.Debugf(s.ctx, "Scheduler started: interval %s (%s)", s.name, s.interval)
	next, _ := s.NextRun()
	s.logger.Info("scheduler started", "interval", s.name, "period", s.interval, "next_run", next)
	return nil
}

func (s *Scheduler) tick() {
	s.logger.Debug("scheduler: running post job")
	res := s.runner.RunOnce(s.ctx, weather.TriggerScheduled)
	s.logger.Debug("scheduler: completed post job", "run_id", res.ID, "state", res.State)
}

// NextRun reports when the job fires next; ok is false before Start.
func (s *Scheduler) NextRun() (next time.Time, ok bool) {
	if s.job == nil {
		return time.Time{}, false
	}
	return s.job.NextRun(), true
}

// Interval returns the cadence name and its period.
func (s *Scheduler) Interval() (string, time.Duration) {
	return s.name, s.interval
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.cancel()
	if s.job != nil {
		s.runner.Debugf(context.Background(), "Scheduler stopped")
	}
}
