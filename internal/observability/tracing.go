package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// newOTLPTraceExporter creates an OTLP HTTP trace exporter. The SDK reads
// OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from the environment.
func newOTLPTraceExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP HTTP trace exporter: %w", err)
	}

	return exp, nil
}

func newStdoutTraceExporter() (sdktrace.SpanExporter, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	return exp, nil
}

const (
	// tracerName is the instrumentation scope for pipeline spans.
	tracerName = "github.com/formbricks/insights/internal/pipeline"
	// pipelineSpanPrefix names every span StartSpan creates for a run or rescore.
	pipelineSpanPrefix = "pipeline."
)

// newSampler always samples pipeline root spans; other roots (metric scrapes) are sampled at
// ratio. Child spans follow their parent.
func newSampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(runSampler{fallback: sdktrace.TraceIDRatioBased(ratio)})
}

type runSampler struct {
	fallback sdktrace.Sampler
}

func (s runSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if !strings.HasPrefix(p.Name, pipelineSpanPrefix) {
		return s.fallback.ShouldSample(p)
	}

	return sdktrace.SamplingResult{
		Decision:   sdktrace.RecordAndSample,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s runSampler) Description() string {
	return "PipelineRuns{fallback:" + s.fallback.Description() + "}"
}

// StartSpan starts "pipeline.<name>" on the global tracer provider. It is a no-op span when
// tracing is disabled.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, pipelineSpanPrefix+name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
