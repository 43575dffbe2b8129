// Package scheduler runs builds on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler wraps a gocron scheduler. Jobs run in singleton mode: a run that
// is still going when the next one is due causes that tick to be skipped.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu    sync.Mutex
	tasks map[uuid.UUID]func()
}

// New creates a scheduler using the local time zone.
func New() (*Scheduler, error) {
	return NewInLocation(time.Local)
}

// NewInLocation creates a scheduler evaluating cron expressions in loc.
func NewInLocation(loc *time.Location) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, tasks: map[uuid.UUID]func(){}}, nil
}

// ScheduleCron registers fn under a five-field cron expression and returns the job ID.
func (s *Scheduler) ScheduleCron(name, expr string, fn func()) (string, error) {
	if expr == "" {
		return "", errors.New("cron expression is required")
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to schedule %q with %q: %w", name, expr, err)
	}
	s.mu.Lock()
	s.tasks[job.ID()] = fn
	s.mu.Unlock()
	return job.ID().String(), nil
}

// Reschedule moves the job with the given ID to a new cron expression,
// keeping its name, task and ID.
func (s *Scheduler) Reschedule(id, expr string) error {
	if expr == "" {
		return errors.New("cron expression is required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	jobID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}
	var name string
	for _, j := range s.scheduler.Jobs() {
		if j.ID() == jobID {
			name = j.Name()
		}
	}
	if name == "" {
		return fmt.Errorf("job %s not found", id)
	}
	s.mu.Lock()
	task, ok := s.tasks[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s has no task", id)
	}
	_, err = s.scheduler.Update(jobID,
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule %q with %q: %w", name, expr, err)
	}
	return nil
}

// NextRun returns the next scheduled time of the first job.
func (s *Scheduler) NextRun() (time.Time, error) {
	jobs := s.scheduler.Jobs()
	if len(jobs) == 0 {
		return time.Time{}, errors.New("no jobs scheduled")
	}
	return jobs[0].NextRun()
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	if next, err := s.NextRun(); err == nil {
		slog.Info("Next scheduled build", slog.Time("at", next))
	}
	<-ctx.Done()
	return s.Stop()
}
