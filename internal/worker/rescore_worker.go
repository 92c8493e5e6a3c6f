package worker

import (
	"context"
	"log/slog"
	"time"
)

// Rescorer recomputes metrics and scores for the current themes.
type Rescorer interface {
	Rescore(ctx context.Context) (int, error)
}

// RescoreWorker periodically re-scores existing themes so that frequency windows and trend
// follow the clock between clustering runs.
type RescoreWorker struct {
	rescorer Rescorer
	interval time.Duration
}

// NewRescoreWorker creates a rescore worker. A non-positive interval defaults to 1h.
func NewRescoreWorker(rescorer Rescorer, interval time.Duration) *RescoreWorker {
	if interval <= 0 {
		interval = time.Hour
	}

	return &RescoreWorker{rescorer: rescorer, interval: interval}
}

// Start runs until ctx is cancelled. The first pass waits one interval since a run at startup
// already scores.
func (w *RescoreWorker) Start(ctx context.Context) {
	slog.Info("rescore worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("rescore worker stopped")

			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RescoreWorker) runOnce(ctx context.Context) {
	n, err := w.rescorer.Rescore(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "rescore failed", "error", err)

		return
	}

	if n > 0 {
		slog.InfoContext(ctx, "rescore completed", "themes", n)
	} else {
		slog.Debug("rescore completed, no themes")
	}
}
