package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	meterScope         = "github.com/formbricks/insights"
	defaultServiceName = "formbricks-insights"
	cardinalityLimit   = 2000
)

// Runs take seconds to minutes; stages and embedding batches are sub-second to tens of seconds.
var (
	runDurationBounds   = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800}
	stageDurationBounds = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300}
)

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// ProviderConfig configures the meter and tracer providers.
type ProviderConfig struct {
	// ServiceName is used in the resource (default: formbricks-insights).
	ServiceName string
	// MetricsExporter is "prometheus", "otlp" or empty for disabled.
	MetricsExporter string
	// TracesExporter is "otlp", "stdout" or empty for disabled.
	TracesExporter string
	// TraceSampleRatio samples root spans other than pipeline runs, which are always kept.
	TraceSampleRatio float64
}

// newResource uses a single resource to avoid Schema URL conflicts when merging with resource.Default().
func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)
}

// MeterSetup is the result of NewMeterProvider. Handler is only set for the Prometheus exporter.
type MeterSetup struct {
	Provider MeterProviderShutdown
	Meter    metric.Meter
	Handler  http.Handler
}

// NewMeterProvider creates a MeterProvider for the configured exporter. When metrics are
// disabled it returns (nil, nil) and callers pass nil metrics to components.
func NewMeterProvider(ctx context.Context, cfg ProviderConfig) (*MeterSetup, error) {
	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)

	switch cfg.MetricsExporter {
	case "prometheus":
		reg := prometheus.NewRegistry()

		exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		reader = exporter
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "otlp":
		// SDK reads OTEL_EXPORTER_OTLP_ENDPOINT (and scheme/insecure) from env.
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(60*time.Second))
	default:
		//nolint:nilnil // intentional: metrics disabled, caller checks for nil
		return nil, nil
	}

	mp := newMeterProvider(cfg.ServiceName, reader)

	return &MeterSetup{
		Provider: mp,
		Meter:    mp.Meter(meterScope),
		Handler:  handler,
	}, nil
}

func newMeterProvider(serviceName string, reader sdkmetric.Reader) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newResource(serviceName)),
		sdkmetric.WithReader(reader),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameRunDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: runDurationBounds}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameStageDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: stageDurationBounds}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: MetricNameEmbeddingDuration},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: stageDurationBounds}},
			),
		),
	)
}

// ShutdownMeterProvider flushes and shuts down the MeterProvider. Safe to call with nil.
func ShutdownMeterProvider(ctx context.Context, setup *MeterSetup) error {
	if setup == nil || setup.Provider == nil {
		return nil
	}

	if err := setup.Provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

// NewTracerProvider creates a TracerProvider when tracing is enabled.
// When cfg.TracesExporter is empty, returns (nil, nil).
func NewTracerProvider(ctx context.Context, cfg ProviderConfig) (*sdktrace.TracerProvider, error) {
	var exp sdktrace.SpanExporter

	switch cfg.TracesExporter {
	case "otlp":
		e, err := newOTLPTraceExporter(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
		}

		exp = e
	case "stdout":
		e, err := newStdoutTraceExporter()
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}

		exp = e
	default:
		//nolint:nilnil // tracing disabled, caller checks for nil
		return nil, nil
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(newResource(cfg.ServiceName)),
		sdktrace.WithSampler(newSampler(cfg.TraceSampleRatio)),
		sdktrace.WithBatcher(exp),
	), nil
}

// ShutdownTracerProvider flushes and shuts down the TracerProvider. Safe to call with nil.
func ShutdownTracerProvider(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}

	return nil
}
