package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric recorders. When metrics are disabled NewMetrics returns nil and
// components receive nil interfaces, which they already handle.
type Metrics struct {
	Pipeline   PipelineMetrics
	Embeddings EmbeddingMetrics
	Jobs       JobMetrics
}

// NewMetrics creates every recorder from meter. Returns (nil, nil) when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	pipeline, err := NewPipelineMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	embeddings, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	jobs, err := NewJobMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("job metrics: %w", err)
	}

	return &Metrics{
		Pipeline:   pipeline,
		Embeddings: embeddings,
		Jobs:       jobs,
	}, nil
}

// PipelineOrNil returns m.Pipeline, or nil when m is nil.
func (m *Metrics) PipelineOrNil() PipelineMetrics {
	if m == nil {
		return nil
	}

	return m.Pipeline
}

// EmbeddingsOrNil returns m.Embeddings, or nil when m is nil.
func (m *Metrics) EmbeddingsOrNil() EmbeddingMetrics {
	if m == nil {
		return nil
	}

	return m.Embeddings
}

// JobsOrNil returns m.Jobs, or nil when m is nil.
func (m *Metrics) JobsOrNil() JobMetrics {
	if m == nil {
		return nil
	}

	return m.Jobs
}
