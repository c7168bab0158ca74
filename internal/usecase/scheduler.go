package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PhoneVerse/internal/ports"
)

// Job is a named recurring task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wires the cron-like driver with the recurring use cases.
type Scheduler struct {
	driver ports.Scheduler
	jobs   []Job
	logger *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, logger *zap.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{driver: driver, jobs: jobs, logger: logger.With(zap.String("component", "jobs"))}
}

// AutomationJob runs the ingestion batch on spec.
func AutomationJob(spec string, automation *AutomationController) Job {
	return Job{Name: "automation", Spec: spec, Run: func(ctx context.Context) error {
		automation.RunScheduled(ctx)
		return nil
	}}
}

// SessionSweepJob deletes expired sessions on spec.
func SessionSweepJob(spec string, auth *AuthService) Job {
	return Job{Name: "session-sweep", Spec: spec, Run: func(ctx context.Context) error {
		_, err := auth.SweepSessions(ctx)
		return err
	}}
}

// KeepAliveJob probes the database every interval.
func KeepAliveJob(interval time.Duration, probe func(context.Context) error) Job {
	return Job{Name: "db-keepalive", Spec: "@every " + interval.String(), Run: probe}
}

// Start registers every job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	for _, job := range s.jobs {
		if job.Spec == "" || job.Run == nil {
			continue
		}
		if err := s.driver.Schedule(job.Spec, s.wrap(ctx, job)); err != nil {
			return fmt.Errorf("register %s: %w", job.Name, err)
		}
	}
	return s.driver.Start(ctx)
}

func (s *Scheduler) wrap(ctx context.Context, job Job) func(time.Time) {
	return func(trigger time.Time) {
		if err := job.Run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name), zap.Time("trigger", trigger), zap.Error(err))
		}
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
