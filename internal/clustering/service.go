// Package clustering groups embedded feedback into themes.
//
// The default Clusterer is DBSCAN over cosine distance, which discovers the number of
// clusters from density and leaves sparse points as noise. KMeansClusterer is a fallback
// whose results are always flagged as degraded.
package clustering

import (
	"context"
	"log/slog"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/labels"
	"github.com/formbricks/insights/pkg/embeddings"
)

// Clusterer assigns vectors to clusters.
type Clusterer interface {
	Cluster(ctx context.Context, vectors [][]float32) (Assignment, error)
}

// Labeler names a cluster from its member texts.
type Labeler interface {
	Label(ctx context.Context, texts []string, corpus *labels.Corpus) labels.Result
}

// ClusterResult is one discovered cluster. MemberIndices index into the input arrays and
// Confidences is parallel to MemberIndices.
type ClusterResult struct {
	ID            int
	Label         string
	Description   *string
	Centroid      []float32
	MemberIndices []int
	Confidences   []float64
}

// Output is the result of clustering a batch.
type Output struct {
	Clusters   []ClusterResult
	NoiseCount int
	Degraded   bool
	// ShortCircuited is set when the batch was below MinFeedbackCount.
	ShortCircuited   bool
	MinFeedbackCount int
}

// ServiceConfig configures the Service.
type ServiceConfig struct {
	// MinFeedbackCount is the batch size below which no clustering is attempted.
	MinFeedbackCount int
}

// Service clusters a batch and labels every cluster.
type Service struct {
	clusterer Clusterer
	labeler   Labeler
	cfg       ServiceConfig
}

// NewService creates a Service. labeler may be nil, in which case clusters are unlabeled.
func NewService(clusterer Clusterer, labeler Labeler, cfg ServiceConfig) (*Service, error) {
	if clusterer == nil {
		return nil, huberrors.NewConfigurationError("CLUSTERING_ALGORITHM", "a clusterer is required")
	}

	if cfg.MinFeedbackCount < 0 {
		return nil, huberrors.NewConfigurationError("CLUSTERING_MIN_FEEDBACK_COUNT", "must not be negative")
	}

	return &Service{clusterer: clusterer, labeler: labeler, cfg: cfg}, nil
}

// Cluster clusters vectors, drops noise and labels each cluster from its texts.
// blockedNames are kept out of labels.
func (s *Service) Cluster(ctx context.Context, vectors [][]float32, texts []string, blockedNames []string) (Output, error) {
	if len(vectors) != len(texts) {
		return Output{}, huberrors.NewValidationError("texts", "vectors and texts must be parallel")
	}

	if len(vectors) < s.cfg.MinFeedbackCount {
		slog.Warn("not enough feedback to cluster",
			"have", len(vectors),
			"need", s.cfg.MinFeedbackCount,
		)

		return Output{ShortCircuited: true, MinFeedbackCount: s.cfg.MinFeedbackCount}, nil
	}

	assignment, err := s.clusterer.Cluster(ctx, vectors)
	if err != nil {
		return Output{}, err
	}

	if assignment.Degraded {
		slog.Warn("clustering ran in degraded mode: k-means fallback assigns every point and cannot detect noise",
			"points", len(vectors),
		)
	}

	out := Output{
		NoiseCount: assignment.NoiseCount(),
		Degraded:   assignment.Degraded,
	}

	corpus := labels.NewCorpus(texts, blockedNames...)

	for id, members := range assignment.Groups() {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		memberVectors := make([][]float32, len(members))
		memberTexts := make([]string, len(members))
		confidences := make([]float64, len(members))

		for i, idx := range members {
			memberVectors[i] = vectors[idx]
			memberTexts[i] = texts[idx]
			confidences[i] = assignment.Confidence[idx]
		}

		centroid, err := embeddings.Mean(memberVectors)
		if err != nil {
			return Output{}, huberrors.NewValidationError("embedding", err.Error())
		}

		result := ClusterResult{
			ID:            id,
			Label:         labels.LabelUnlabeled,
			Centroid:      centroid,
			MemberIndices: members,
			Confidences:   confidences,
		}

		if s.labeler != nil {
			named := s.labeler.Label(ctx, memberTexts, corpus)
			result.Label = named.Label

			if named.Refined && named.Keywords != "" {
				keywords := named.Keywords
				result.Description = &keywords
			}
		}

		out.Clusters = append(out.Clusters, result)
	}

	slog.Info("clustering complete",
		"points", len(vectors),
		"clusters", len(out.Clusters),
		"noise", out.NoiseCount,
		"degraded", out.Degraded,
		"epsilon", assignment.Epsilon,
	)

	return out, nil
}
