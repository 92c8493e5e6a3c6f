package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding provider calls made while backfilling missing vectors,
// and how many texts the embedding cache answered without a provider call.
type EmbeddingMetrics interface {
	RecordBatch(ctx context.Context, status string, texts int)
	RecordDuration(ctx context.Context, duration time.Duration, status string)
	RecordCacheLookups(ctx context.Context, hits, misses int)
}

type embeddingMetrics struct {
	batches     metric.Int64Counter
	texts       metric.Int64Counter
	duration    metric.Float64Histogram
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	batches, err := meter.Int64Counter(
		MetricNameEmbeddingBatches,
		metric.WithDescription("Embedding provider batch calls by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding batches counter: %w", err)
	}

	texts, err := meter.Int64Counter(
		MetricNameEmbeddingTexts,
		metric.WithDescription("Texts sent to the embedding provider by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding texts counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding batch duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	// Hit ratio = rate(hits) / (rate(hits) + rate(misses)).
	cacheHits, err := meter.Int64Counter(
		MetricNameEmbeddingCacheHits,
		metric.WithDescription("Texts whose embedding was served from the cache"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		MetricNameEmbeddingCacheMisses,
		metric.WithDescription("Texts that missed the cache and went to the embedding provider"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache misses counter: %w", err)
	}

	return &embeddingMetrics{
		batches:     batches,
		texts:       texts,
		duration:    duration,
		cacheHits:   cacheHits,
		cacheMisses: cacheMisses,
	}, nil
}

func (e *embeddingMetrics) RecordBatch(ctx context.Context, status string, texts int) {
	attrs := metric.WithAttributes(attribute.String(AttrStatus, NormalizeReason(status, AllowedEmbeddingStatuses)))
	e.batches.Add(ctx, 1, attrs)
	e.texts.Add(ctx, int64(texts), attrs)
}

func (e *embeddingMetrics) RecordDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeReason(status, AllowedEmbeddingStatuses)
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (e *embeddingMetrics) RecordCacheLookups(ctx context.Context, hits, misses int) {
	if hits > 0 {
		e.cacheHits.Add(ctx, int64(hits))
	}

	if misses > 0 {
		e.cacheMisses.Add(ctx, int64(misses))
	}
}
