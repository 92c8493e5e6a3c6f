package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// JobMetrics records queue and scheduler activity.
type JobMetrics interface {
	RecordEnqueued(ctx context.Context, trigger string)
	RecordOutcome(ctx context.Context, outcome string)
	RecordSchedulerTick(ctx context.Context)
	RecordLockSkip(ctx context.Context)
}

type jobMetrics struct {
	enqueued  metric.Int64Counter
	outcomes  metric.Int64Counter
	ticks     metric.Int64Counter
	lockSkips metric.Int64Counter
}

// NewJobMetrics creates JobMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewJobMetrics(meter metric.Meter) (JobMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	enqueued, err := meter.Int64Counter(MetricNameJobsEnqueued,
		metric.WithDescription("Clustering run jobs inserted into the queue by trigger"))
	if err != nil {
		return nil, fmt.Errorf("create jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(MetricNameJobOutcomes,
		metric.WithDescription("Clustering run job outcomes"))
	if err != nil {
		return nil, fmt.Errorf("create job outcomes counter: %w", err)
	}

	ticks, err := meter.Int64Counter(MetricNameSchedulerTicks,
		metric.WithDescription("Scheduler ticks"))
	if err != nil {
		return nil, fmt.Errorf("create scheduler ticks counter: %w", err)
	}

	lockSkips, err := meter.Int64Counter(MetricNameSchedulerLockSkips,
		metric.WithDescription("Scheduler ticks skipped because another instance held the run lock"))
	if err != nil {
		return nil, fmt.Errorf("create scheduler lock skips counter: %w", err)
	}

	return &jobMetrics{enqueued: enqueued, outcomes: outcomes, ticks: ticks, lockSkips: lockSkips}, nil
}

func (j *jobMetrics) RecordEnqueued(ctx context.Context, trigger string) {
	j.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrTrigger, NormalizeReason(trigger, AllowedTriggers))))
}

func (j *jobMetrics) RecordOutcome(ctx context.Context, outcome string) {
	j.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedJobOutcomes))))
}

func (j *jobMetrics) RecordSchedulerTick(ctx context.Context) {
	j.ticks.Add(ctx, 1)
}

func (j *jobMetrics) RecordLockSkip(ctx context.Context) {
	j.lockSkips.Add(ctx, 1)
}
