// Package pipeline runs the merge job on a cron schedule.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"phish-merge/internal/domain"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler manages cron-based job execution. Overlapping runs of the same
// job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID // job name → cron entry
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name on a standard five-field cron expression.
// Adding a name twice replaces the earlier entry.
func (s *Scheduler) Add(name, schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Warn("scheduled job failed",
				"job", name,
				"kind", domain.ErrorKind(err),
				"error", err,
			)
			return
		}
		s.logger.Info("scheduled job finished", "job", name, "duration", time.Since(started))
	})
	if err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %v", schedule, err)
	}

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old)
	}
	s.entries[name] = entryID
	s.logger.Info("scheduled job", "job", name, "schedule", schedule)
	return nil
}

// Next returns the next activation time of the named job.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return time.Time{}, domain.ErrNotFound("job %q not scheduled", name)
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, fmt.Errorf("job %q has no valid cron entry", name)
	}
	if entry.Next.IsZero() {
		return entry.Schedule.Next(time.Now()), nil
	}
	return entry.Next, nil
}

// Start starts the cron scheduler. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("merge scheduler started", "jobs", len(s.entries))
}

// Stop stops the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("merge scheduler stopped")
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
