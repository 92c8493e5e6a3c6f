package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := newMeterProvider("test", reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter(meterScope))
	require.NoError(t, err)
	require.NotNil(t, m)

	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64

	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}

	return total
}

func total(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}

	return n
}

func TestNormalizeReason(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"known stage", "cluster", AllowedStages, "cluster"},
		{"unknown stage", "train", AllowedStages, "other"},
		{"empty", "", AllowedTriggers, "other"},
		{"known outcome", "fallback", AllowedGenerationOutcomes, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeReason(tt.input, tt.allowed))
		})
	}
}

func TestNewMetrics_nilMeter(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, m.PipelineOrNil())
	assert.Nil(t, m.EmbeddingsOrNil())
	assert.Nil(t, m.JobsOrNil())
}

func TestPipelineMetrics_RecordRun(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Pipeline.RecordRun(ctx, "manual", "completed", 3*time.Second)
	m.Pipeline.RecordRun(ctx, "schedule", "bogus", time.Second)
	m.Pipeline.RecordStage(ctx, "cluster", 200*time.Millisecond)
	m.Pipeline.RecordRunCounts(ctx, RunCounts{Themes: 4, Insights: 7, Noise: 2, Merged: 1})
	m.Pipeline.RecordGeneration(ctx, "insight", "fallback")
	m.Pipeline.SetActiveThemes(4)

	got := collect(t, reader)

	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameRuns], AttrStatus, "completed"))
	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameRuns], AttrStatus, "other"))
	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameGenerations], AttrOutcome, "fallback"))

	themes, ok := got[MetricNameThemesCreated].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, themes.DataPoints, 1)
	assert.Equal(t, int64(4), themes.DataPoints[0].Value)

	stages, ok := got[MetricNameStageDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, stages.DataPoints, 1)
	assert.Equal(t, uint64(1), stages.DataPoints[0].Count)
	assert.Equal(t, stageDurationBounds, stages.DataPoints[0].Bounds)

	gauge, ok := got[MetricNameActiveThemes].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(4), gauge.DataPoints[0].Value)
}

func TestEmbeddingMetrics_RecordBatch(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Embeddings.RecordBatch(ctx, "success", 32)
	m.Embeddings.RecordBatch(ctx, "failed", 8)
	m.Embeddings.RecordDuration(ctx, time.Second, "success")

	got := collect(t, reader)

	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameEmbeddingBatches], AttrStatus, "success"))
	assert.Equal(t, int64(32), sumByAttr(t, got[MetricNameEmbeddingTexts], AttrStatus, "success"))
	assert.Equal(t, int64(8), sumByAttr(t, got[MetricNameEmbeddingTexts], AttrStatus, "failed"))
}

func TestEmbeddingMetrics_RecordCacheLookups(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Embeddings.RecordCacheLookups(ctx, 3, 1)
	m.Embeddings.RecordCacheLookups(ctx, 0, 4)

	got := collect(t, reader)

	assert.Equal(t, int64(3), total(t, got[MetricNameEmbeddingCacheHits]))
	assert.Equal(t, int64(5), total(t, got[MetricNameEmbeddingCacheMisses]))
}

func TestJobMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Jobs.RecordEnqueued(ctx, "manual")
	m.Jobs.RecordOutcome(ctx, "conflict")
	m.Jobs.RecordSchedulerTick(ctx)
	m.Jobs.RecordLockSkip(ctx)

	got := collect(t, reader)

	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameJobsEnqueued], AttrTrigger, "manual"))
	assert.Equal(t, int64(1), sumByAttr(t, got[MetricNameJobOutcomes], AttrOutcome, "conflict"))
	assert.Contains(t, got, MetricNameSchedulerTicks)
	assert.Contains(t, got, MetricNameSchedulerLockSkips)
}

func TestNewMeterProvider_disabled(t *testing.T) {
	setup, err := NewMeterProvider(context.Background(), ProviderConfig{})
	require.NoError(t, err)
	assert.Nil(t, setup)
	require.NoError(t, ShutdownMeterProvider(context.Background(), setup))
}

func TestNewMeterProvider_prometheus(t *testing.T) {
	setup, err := NewMeterProvider(context.Background(), ProviderConfig{MetricsExporter: "prometheus"})
	require.NoError(t, err)
	require.NotNil(t, setup)
	assert.NotNil(t, setup.Handler)
	assert.NotNil(t, setup.Meter)
	require.NoError(t, ShutdownMeterProvider(context.Background(), setup))
}

func TestSampler_alwaysKeepsPipelineRuns(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(newSampler(0)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := tp.Tracer("test")

	ctx, run := tracer.Start(context.Background(), pipelineSpanPrefix+"Run")
	_, stage := tracer.Start(ctx, "embed")
	_, scrape := tracer.Start(context.Background(), "GET /metrics")

	assert.True(t, run.SpanContext().IsSampled())
	assert.True(t, stage.SpanContext().IsSampled(), "children follow the run")
	assert.False(t, scrape.SpanContext().IsSampled())
}

func TestSampler_ratioAppliesToOtherRoots(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(newSampler(1)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, scrape := tp.Tracer("test").Start(context.Background(), "GET /metrics")
	assert.True(t, scrape.SpanContext().IsSampled())

	assert.Contains(t, newSampler(0.25).Description(), "PipelineRuns{fallback:TraceIDRatioBased{0.25}}")
}

func TestTraceContextHandler_addsRunAndTraceIDs(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, slog.LevelInfo, "json")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	runID := uuid.New()
	ctx := WithRunID(context.Background(), runID)
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	logger.InfoContext(ctx, "hello")
	span.End()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, runID.String(), record["run_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
}

func TestTraceContextHandler_withoutContext(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogger(&buf, slog.LevelDebug, "json")
	logger.Debug("plain")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "run_id")
	assert.NotContains(t, record, "trace_id")
}

func TestRunIDFromContext_nil(t *testing.T) {
	_, ok := RunIDFromContext(WithRunID(context.Background(), uuid.Nil))
	assert.False(t, ok)
}
