// Package scheduler manages background jobs.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Entry describes one registered job for introspection.
type Entry struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastErr  string     `json:"last_error,omitempty"`
}

// Scheduler runs registered jobs on cron schedules and tracks their last
// outcome for the admin API.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries []*Entry
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with a cron schedule
// Schedule examples:
//   - "30 22 * * MON-FRI"  - 22:30 weekdays
//   - "@hourly"            - Every hour
//   - "@weekly"            - Midnight Sunday
func (s *Scheduler) AddJob(schedule string, job Job) error {
	entry := &Entry{Name: job.Name(), Schedule: schedule}

	_, err := s.cron.AddFunc(schedule, func() {
		s.runTracked(entry, job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule. The run is
// recorded against the job's entry when one exists.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	entry := s.findEntry(job.Name())
	if entry == nil {
		return job.Run()
	}
	return s.runTracked(entry, job)
}

// Jobs returns a snapshot of all registered jobs and their last outcome.
func (s *Scheduler) Jobs() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

func (s *Scheduler) runTracked(entry *Entry, job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	err := job.Run()

	now := time.Now()
	s.mu.Lock()
	entry.LastRun = &now
	if err != nil {
		entry.LastErr = err.Error()
	} else {
		entry.LastErr = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
	} else {
		s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	}
	return err
}

func (s *Scheduler) findEntry(name string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}
