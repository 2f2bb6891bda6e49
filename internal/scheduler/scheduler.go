// Package scheduler runs named gateway jobs on cron or interval schedules.
package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"oceangateway/internal/logging"

	"github.com/go-co-op/gocron/v2"
)

// JobInfo describes a registered job.
type JobInfo struct {
	ID       string
	Name     string
	Schedule string    // cron expression or interval
	LastRun  time.Time // zero if never run
	NextRun  time.Time // zero if not scheduled
}

// Scheduler owns one gocron scheduler. Jobs never overlap themselves: a run
// that is still going when the next one is due causes that one to be
// skipped.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	schedules map[string]string
	logger    *slog.Logger
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		schedules: make(map[string]string),
		logger:    logging.Default(logger).With("component", "scheduler"),
	}, nil
}

// AddCron registers fn under a standard five-field cron expression.
func (s *Scheduler) AddCron(name, cronExpr string, fn func()) error {
	return s.add(name, cronExpr, gocron.CronJob(cronExpr, false), fn)
}

// AddInterval registers fn to run every d.
func (s *Scheduler) AddInterval(name string, d time.Duration, fn func()) error {
	if d <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %s", name, d)
	}
	return s.add(name, d.String(), gocron.DurationJob(d), fn)
}

func (s *Scheduler) add(name, schedule string, def gocron.JobDefinition, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduled job already exists: %s", name)
	}
	j, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("create scheduled job %s: %w", name, err)
	}
	s.jobs[name] = j
	s.schedules[name] = schedule
	s.logger.Info("scheduled job added", "name", name, "schedule", schedule)
	return nil
}

// RunNow triggers a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no scheduled job %s", name)
	}
	return j.RunNow()
}

// Jobs lists the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		info := JobInfo{
			ID:       j.ID().String(),
			Name:     name,
			Schedule: s.schedules[name],
		}
		if lr, err := j.LastRun(); err == nil {
			info.LastRun = lr
		}
		if nr, err := j.NextRun(); err == nil {
			info.NextRun = nr
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Start begins executing all registered jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop shuts down the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
