package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/observability"
)

// Inserter inserts jobs. *river.Client[pgx.Tx] satisfies it.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// pendingStates are the job states that count as "a run is already queued". River requires
// pending, available, running and scheduled whenever ByState is set.
var pendingStates = []rivertype.JobState{
	rivertype.JobStatePending,
	rivertype.JobStateAvailable,
	rivertype.JobStateRunning,
	rivertype.JobStateRetryable,
	rivertype.JobStateScheduled,
}

// RunEnqueuer enqueues clustering runs, at most one queued or running at a time.
type RunEnqueuer struct {
	inserter    Inserter
	maxAttempts int
	metrics     observability.JobMetrics
}

// NewRunEnqueuer creates an enqueuer. metrics may be nil when metrics are disabled.
func NewRunEnqueuer(inserter Inserter, maxAttempts int, metrics observability.JobMetrics) *RunEnqueuer {
	return &RunEnqueuer{inserter: inserter, maxAttempts: maxAttempts, metrics: metrics}
}

// Enqueue inserts a clustering run job. It returns false without error when a run is already
// queued or running; uniqueness ignores the trigger.
func (e *RunEnqueuer) Enqueue(ctx context.Context, trigger models.RunTrigger) (bool, error) {
	res, err := e.inserter.Insert(ctx, ClusteringRunArgs{Trigger: trigger}, &river.InsertOpts{
		Queue:       QueueName,
		MaxAttempts: e.maxAttempts,
		UniqueOpts: river.UniqueOpts{
			ByState: pendingStates,
		},
	})
	if err != nil {
		return false, fmt.Errorf("enqueue clustering run: %w", err)
	}

	if res.UniqueSkippedAsDuplicate {
		slog.InfoContext(ctx, "clustering run already queued", "trigger", trigger, "job_id", jobID(res))

		return false, nil
	}

	slog.InfoContext(ctx, "clustering run enqueued", "trigger", trigger, "job_id", jobID(res))

	if e.metrics != nil {
		e.metrics.RecordEnqueued(ctx, string(trigger))
	}

	return true, nil
}

func jobID(res *rivertype.JobInsertResult) int64 {
	if res == nil || res.Job == nil {
		return 0
	}

	return res.Job.ID
}
