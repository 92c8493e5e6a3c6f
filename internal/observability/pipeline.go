package observability

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records clustering run outcomes and stage timings.
type PipelineMetrics interface {
	RecordRun(ctx context.Context, trigger, status string, duration time.Duration)
	RecordStage(ctx context.Context, stage string, duration time.Duration)
	RecordRunCounts(ctx context.Context, counts RunCounts)
	RecordGeneration(ctx context.Context, kind, outcome string)
	SetActiveThemes(n int64)
}

// RunCounts are the per-run totals added to the cumulative counters.
type RunCounts struct {
	Themes   int
	Insights int
	Noise    int
	Merged   int
}

type pipelineMetrics struct {
	runs          metric.Int64Counter
	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram
	themes        metric.Int64Counter
	insights      metric.Int64Counter
	noise         metric.Int64Counter
	merged        metric.Int64Counter
	generations   metric.Int64Counter
	activeThemes  atomic.Int64
}

// NewPipelineMetrics creates PipelineMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	m := &pipelineMetrics{}

	var err error

	m.runs, err = meter.Int64Counter(MetricNameRuns,
		metric.WithDescription("Clustering runs by trigger and final status"))
	if err != nil {
		return nil, fmt.Errorf("create runs counter: %w", err)
	}

	m.runDuration, err = meter.Float64Histogram(MetricNameRunDuration,
		metric.WithDescription("Wall time of a clustering run (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create run duration histogram: %w", err)
	}

	m.stageDuration, err = meter.Float64Histogram(MetricNameStageDuration,
		metric.WithDescription("Wall time of a single pipeline stage (seconds)"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create stage duration histogram: %w", err)
	}

	m.themes, err = meter.Int64Counter(MetricNameThemesCreated,
		metric.WithDescription("Themes written by completed runs"))
	if err != nil {
		return nil, fmt.Errorf("create themes counter: %w", err)
	}

	m.insights, err = meter.Int64Counter(MetricNameInsightsCreated,
		metric.WithDescription("Insights written by completed runs after deduplication"))
	if err != nil {
		return nil, fmt.Errorf("create insights counter: %w", err)
	}

	m.noise, err = meter.Int64Counter(MetricNameNoiseItems,
		metric.WithDescription("Feedback items left unassigned by the density clusterer"))
	if err != nil {
		return nil, fmt.Errorf("create noise counter: %w", err)
	}

	m.merged, err = meter.Int64Counter(MetricNameInsightsMerged,
		metric.WithDescription("Insight drafts merged away as near-duplicate titles"))
	if err != nil {
		return nil, fmt.Errorf("create merged counter: %w", err)
	}

	m.generations, err = meter.Int64Counter(MetricNameGenerations,
		metric.WithDescription("Text generation calls by kind and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create generations counter: %w", err)
	}

	_, err = meter.Int64ObservableGauge(MetricNameActiveThemes,
		metric.WithDescription("Themes produced by the most recent completed run"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeThemes.Load())

			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create active themes gauge: %w", err)
	}

	return m, nil
}

func (p *pipelineMetrics) RecordRun(ctx context.Context, trigger, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrTrigger, NormalizeReason(trigger, AllowedTriggers)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedRunStatuses)),
	)
	p.runs.Add(ctx, 1, attrs)
	p.runDuration.Record(ctx, duration.Seconds(), attrs)
}

func (p *pipelineMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration) {
	stage = NormalizeReason(stage, AllowedStages)
	p.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStage, stage)))
}

func (p *pipelineMetrics) RecordRunCounts(ctx context.Context, counts RunCounts) {
	p.themes.Add(ctx, int64(counts.Themes))
	p.insights.Add(ctx, int64(counts.Insights))
	p.noise.Add(ctx, int64(counts.Noise))
	p.merged.Add(ctx, int64(counts.Merged))
}

func (p *pipelineMetrics) RecordGeneration(ctx context.Context, kind, outcome string) {
	p.generations.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrKind, NormalizeReason(kind, AllowedGenerationKinds)),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedGenerationOutcomes)),
	))
}

func (p *pipelineMetrics) SetActiveThemes(n int64) {
	p.activeThemes.Store(n)
}
