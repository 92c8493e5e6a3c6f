package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/observability"
)

// DefaultRunTimeout bounds one clustering job. River's own default is a minute.
const DefaultRunTimeout = 30 * time.Minute

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trigger models.RunTrigger) (models.RunResult, error)
}

// ClusteringRunWorker executes clustering runs from the queue.
type ClusteringRunWorker struct {
	river.WorkerDefaults[ClusteringRunArgs]

	runner  Runner
	timeout time.Duration
	metrics observability.JobMetrics
}

// NewClusteringRunWorker creates the worker. A zero timeout means DefaultRunTimeout. metrics may
// be nil when metrics are disabled.
func NewClusteringRunWorker(runner Runner, timeout time.Duration, metrics observability.JobMetrics) *ClusteringRunWorker {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}

	return &ClusteringRunWorker{runner: runner, timeout: timeout, metrics: metrics}
}

// Timeout limits how long a single run can take.
func (w *ClusteringRunWorker) Timeout(*river.Job[ClusteringRunArgs]) time.Duration {
	return w.timeout
}

// Work runs the pipeline. A run already in flight or a configuration problem cancels the job;
// anything else is retried until the attempt budget is spent.
func (w *ClusteringRunWorker) Work(ctx context.Context, job *river.Job[ClusteringRunArgs]) error {
	trigger := job.Args.Trigger
	if trigger == "" {
		trigger = models.TriggerManual
	}

	res, err := w.runner.Run(ctx, trigger)

	switch {
	case err == nil && res.Skipped:
		w.record(ctx, "skipped")

		slog.InfoContext(ctx, "clustering job skipped",
			"job_id", job.ID,
			"run_id", res.RunID,
			"reason", res.SkipReason,
		)

		return nil
	case err == nil:
		w.record(ctx, "completed")

		slog.InfoContext(ctx, "clustering job completed",
			"job_id", job.ID,
			"run_id", res.RunID,
			"themes", res.ThemesCreated,
			"insights", res.InsightsCreated,
		)

		return nil
	case errors.Is(err, huberrors.ErrConflict):
		w.record(ctx, "conflict")

		slog.InfoContext(ctx, "clustering job cancelled, run already in progress", "job_id", job.ID)

		return river.JobCancel(err)
	case errors.Is(err, huberrors.ErrConfiguration):
		w.record(ctx, "failed")

		slog.ErrorContext(ctx, "clustering job cancelled, configuration error", "job_id", job.ID, "error", err)

		return river.JobCancel(err)
	}

	if job.Attempt >= job.MaxAttempts {
		w.record(ctx, "failed")

		slog.ErrorContext(ctx, "clustering job failed (final attempt)",
			"job_id", job.ID,
			"attempt", job.Attempt,
			"error", err,
		)
	} else {
		w.record(ctx, "retry")
	}

	return fmt.Errorf("clustering run: %w", err)
}

func (w *ClusteringRunWorker) record(ctx context.Context, outcome string) {
	if w.metrics != nil {
		w.metrics.RecordOutcome(ctx, outcome)
	}
}
