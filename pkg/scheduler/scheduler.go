// Package scheduler runs periodic usage flushes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Flusher drains in-memory usage into durable storage.
type Flusher interface {
	FlushAll(ctx context.Context) error
}

// FlushScheduler runs a Flusher on a cron schedule (e.g. every 15 minutes).
type FlushScheduler struct {
	flusher  Flusher
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	statsMu  sync.Mutex
	lastRun  time.Time
	lastErr  error
	runCount int
}

// New creates a flush scheduler. The schedule uses standard five-field cron
// syntax; descriptors such as "@hourly" and "@every 5m" are accepted too.
//
// Common cron expressions:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
//   - "55 23 * * *"  - Daily, just before midnight
//
// An empty schedule disables periodic flushing.
func New(flusher Flusher, schedule string) *FlushScheduler {
	return &FlushScheduler{
		flusher:  flusher,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "flush.scheduler"),
	}
}

// Validate checks the cron expression without starting anything.
func Validate(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Start schedules the flush job. The scheduler stops when ctx is cancelled.
func (s *FlushScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("flush schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("flush scheduler already running")
	}

	if err := Validate(s.schedule); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.RunNow(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule flush: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("flush scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunNow performs one flush cycle immediately and returns its error.
func (s *FlushScheduler) RunNow(ctx context.Context) error {
	s.logger.Debug("starting usage flush")
	started := time.Now()

	err := s.flusher.FlushAll(ctx)

	s.statsMu.Lock()
	s.lastRun = started
	s.lastErr = err
	s.runCount++
	s.statsMu.Unlock()

	if err != nil {
		s.logger.Error("usage flush failed", "error", err)
		return err
	}

	s.logger.Debug("usage flush completed", "duration", time.Since(started))
	return nil
}

// Stop stops the scheduler and waits for a running flush to complete.
func (s *FlushScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("flush scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *FlushScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled flush time.
func (s *FlushScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

// Stats describes the flushes run so far.
type Stats struct {
	LastRun  time.Time
	LastErr  error
	RunCount int
}

// Stats returns a snapshot of the flush history.
func (s *FlushScheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	return Stats{LastRun: s.lastRun, LastErr: s.lastErr, RunCount: s.runCount}
}
