package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/formbricks/insights/internal/observability"
)

// ErrorHandler logs job errors and panics.
type ErrorHandler struct {
	metrics observability.JobMetrics
}

// NewErrorHandler creates an error handler. metrics may be nil when metrics are disabled.
func NewErrorHandler(metrics observability.JobMetrics) *ErrorHandler {
	return &ErrorHandler{metrics: metrics}
}

// HandleError is called when a job returns an error. Outcomes are recorded by the worker.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job failed",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
		"error", err,
	)

	// Default retry behavior.
	return nil
}

// HandlePanic is called when a job panics. The worker never got to record an outcome, so it is
// recorded here.
func (h *ErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	slog.ErrorContext(ctx, "job panicked",
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"panic_value", panicVal,
		"stack_trace", trace,
	)

	if h.metrics != nil {
		outcome := "retry"
		if job.Attempt >= job.MaxAttempts {
			outcome = "failed"
		}

		h.metrics.RecordOutcome(ctx, outcome)
	}

	return nil
}
