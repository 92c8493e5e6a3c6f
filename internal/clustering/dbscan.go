package clustering

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/formbricks/insights/internal/huberrors"
)

const noise = -1

// DensityConfig configures the density clusterer.
type DensityConfig struct {
	// MinClusterSize drops clusters with fewer members to noise.
	MinClusterSize int
	// MinSamples is the neighborhood size, including the point itself, that makes a core point.
	MinSamples int
	// Epsilon fixes the neighborhood radius. Zero selects it from the k-distance curve.
	Epsilon float64
	// MinEpsilon and MaxEpsilon bound the selected radius.
	MinEpsilon float64
	MaxEpsilon float64
}

// DefaultDensityConfig returns min_cluster_size=5, min_samples=3 and radius bounds [0.05, 0.35].
func DefaultDensityConfig() DensityConfig {
	return DensityConfig{
		MinClusterSize: 5,
		MinSamples:     3,
		MinEpsilon:     0.05,
		MaxEpsilon:     0.35,
	}
}

// Validate rejects non-positive sizes and inverted radius bounds.
func (c DensityConfig) Validate() error {
	if c.MinClusterSize <= 0 {
		return huberrors.NewConfigurationError("HDBSCAN_MIN_CLUSTER_SIZE", "must be a positive integer")
	}

	if c.MinSamples <= 0 {
		return huberrors.NewConfigurationError("HDBSCAN_MIN_SAMPLES", "must be a positive integer")
	}

	if c.Epsilon < 0 || c.Epsilon > 2 {
		return huberrors.NewConfigurationError("CLUSTERING_EPSILON", "must be within [0,2]")
	}

	if c.MinEpsilon <= 0 || c.MaxEpsilon < c.MinEpsilon || c.MaxEpsilon > 2 {
		return huberrors.NewConfigurationError("CLUSTERING_MIN_EPSILON", "radius bounds must satisfy 0 < min <= max <= 2")
	}

	return nil
}

// DensityClusterer groups vectors with DBSCAN over cosine distance.
// The number of clusters is discovered from the data and sparse points are returned as noise.
type DensityClusterer struct {
	cfg DensityConfig
}

// NewDensityClusterer validates cfg and returns a clusterer.
func NewDensityClusterer(cfg DensityConfig) (*DensityClusterer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &DensityClusterer{cfg: cfg}, nil
}

// Cluster assigns every vector to a cluster or to noise.
func (c *DensityClusterer) Cluster(ctx context.Context, vectors [][]float32) (Assignment, error) {
	n := len(vectors)

	dm, err := newDistanceMatrix(vectors)
	if err != nil {
		return Assignment{}, err
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = noise
	}

	if n == 0 {
		return Assignment{Labels: labels, Confidence: []float64{}}, nil
	}

	core := dm.coreDistances(c.cfg.MinSamples - 1)
	eps := c.epsilon(core)

	neighborhoods := make([][]int, n)
	for i := range n {
		neighborhoods[i] = dm.neighbors(i, eps)
	}

	isCore := func(i int) bool { return len(neighborhoods[i])+1 >= c.cfg.MinSamples }

	visited := make([]bool, n)
	next := 0

	for i := range n {
		if err := ctx.Err(); err != nil {
			return Assignment{}, err
		}

		if visited[i] {
			continue
		}

		visited[i] = true

		if !isCore(i) {
			continue
		}

		labels[i] = next
		queue := append([]int(nil), neighborhoods[i]...)

		for q := 0; q < len(queue); q++ {
			j := queue[q]
			if labels[j] == noise {
				labels[j] = next
			}

			if visited[j] {
				continue
			}

			visited[j] = true

			if isCore(j) {
				queue = append(queue, neighborhoods[j]...)
			}
		}

		next++
	}

	labels = relabel(labels, c.cfg.MinClusterSize)
	confidence := densityConfidence(labels, core, eps)

	slog.Debug("density clustering finished",
		"points", n,
		"epsilon", eps,
		"clusters", countClusters(labels),
	)

	return Assignment{Labels: labels, Confidence: confidence, Epsilon: eps}, nil
}

// epsilon picks the radius just below the largest jump in the sorted k-distance curve,
// then clamps it to the configured bounds.
func (c *DensityClusterer) epsilon(core []float64) float64 {
	if c.cfg.Epsilon > 0 {
		return c.cfg.Epsilon
	}

	sorted := append([]float64(nil), core...)
	sort.Float64s(sorted)

	eps := sorted[len(sorted)-1]
	bestGap := -1.0

	for i := 0; i+1 < len(sorted); i++ {
		if gap := sorted[i+1] - sorted[i]; gap > bestGap {
			bestGap = gap
			eps = sorted[i]
		}
	}

	return math.Max(c.cfg.MinEpsilon, math.Min(c.cfg.MaxEpsilon, eps))
}

// densityConfidence scores members by how core-like they are: 1 - core/eps, scaled so the
// densest member of each cluster scores 1. Noise scores 0.
func densityConfidence(labels []int, core []float64, eps float64) []float64 {
	conf := make([]float64, len(labels))
	best := make(map[int]float64)

	for i, l := range labels {
		if l == noise {
			continue
		}

		v := 1 - math.Min(core[i], eps)/eps
		conf[i] = v

		if v > best[l] {
			best[l] = v
		}
	}

	for i, l := range labels {
		if l == noise {
			continue
		}

		if best[l] == 0 {
			conf[i] = 1

			continue
		}

		conf[i] /= best[l]
	}

	return conf
}
