// Package worker provides the background loops of the insights service: the periodic
// clustering scheduler and the rescore worker.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/formbricks/insights/internal/observability"
	"github.com/formbricks/insights/internal/runlock"
)

// Dispatcher starts one scheduled clustering run, either by enqueueing it or by running it inline.
type Dispatcher interface {
	Dispatch(ctx context.Context) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context) error { return f(ctx) }

// StaleRunReaper fails runs left in "running" by a crashed process.
type StaleRunReaper interface {
	FailStaleRuns(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Scheduler periodically dispatches a clustering run. With a Locker, only the replica holding the
// lease dispatches on a given tick.
type Scheduler struct {
	dispatcher Dispatcher
	locker     *runlock.Locker
	reaper     StaleRunReaper
	interval   time.Duration
	staleAfter time.Duration
	metrics    observability.JobMetrics
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLocker serializes dispatch across replicas through a Redis lease.
func WithLocker(l *runlock.Locker) SchedulerOption {
	return func(s *Scheduler) { s.locker = l }
}

// WithStaleRunReaper fails runs older than maxAge before each dispatch.
func WithStaleRunReaper(r StaleRunReaper, maxAge time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.reaper = r
		s.staleAfter = maxAge
	}
}

// WithJobMetrics records ticks and lock skips. m may be nil.
func WithJobMetrics(m observability.JobMetrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler creates a scheduler. A non-positive interval defaults to 24h.
func NewScheduler(dispatcher Dispatcher, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	s := &Scheduler{dispatcher: dispatcher, interval: interval, staleAfter: 2 * time.Hour}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start runs one tick immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("clustering scheduler started",
		"interval", s.interval,
		"locked", s.locker != nil,
	)

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("clustering scheduler stopped")

			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick reaps stale runs and dispatches one run. Errors are logged; the next tick tries again.
func (s *Scheduler) Tick(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordSchedulerTick(ctx)
	}

	s.reap(ctx)

	if s.locker == nil {
		s.dispatch(ctx)

		return
	}

	err := s.locker.Do(ctx, func(ctx context.Context) error {
		s.dispatch(ctx)

		return nil
	})

	switch {
	case errors.Is(err, runlock.ErrNotAcquired):
		if s.metrics != nil {
			s.metrics.RecordLockSkip(ctx)
		}

		slog.DebugContext(ctx, "scheduled run skipped, lock held by another replica")
	case err != nil:
		slog.ErrorContext(ctx, "scheduled run skipped, lock unavailable", "error", err)
	}
}

func (s *Scheduler) reap(ctx context.Context) {
	if s.reaper == nil {
		return
	}

	n, err := s.reaper.FailStaleRuns(ctx, s.staleAfter)
	if err != nil {
		slog.ErrorContext(ctx, "failed to reap stale runs", "error", err)

		return
	}

	if n > 0 {
		slog.WarnContext(ctx, "marked stale clustering runs as failed", "count", n, "max_age", s.staleAfter)
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if err := s.dispatcher.Dispatch(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduled clustering run failed", "error", err)

		return
	}

	slog.DebugContext(ctx, "scheduled clustering run dispatched")
}
