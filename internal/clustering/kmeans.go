package clustering

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/formbricks/insights/internal/huberrors"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultKMeansIterations = 100
	defaultKMeansSeed       = 42
)

// KMeansClusterer is the fallback clusterer. It needs k up front and assigns every point,
// so its results are always flagged as degraded.
type KMeansClusterer struct {
	maxIterations int
	seed          uint64
}

// KMeansOption configures a KMeansClusterer.
type KMeansOption func(*KMeansClusterer)

// WithSeed fixes the k-means++ seed.
func WithSeed(seed uint64) KMeansOption {
	return func(c *KMeansClusterer) {
		c.seed = seed
	}
}

// WithMaxIterations bounds Lloyd iterations.
func WithMaxIterations(n int) KMeansOption {
	return func(c *KMeansClusterer) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// NewKMeansClusterer creates a deterministic k-means clusterer.
func NewKMeansClusterer(opts ...KMeansOption) *KMeansClusterer {
	c := &KMeansClusterer{maxIterations: defaultKMeansIterations, seed: defaultKMeansSeed}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ChooseK returns max(3, min(10, n/10)), capped at n.
func ChooseK(n int) int {
	return min(n, max(3, min(10, n/10)))
}

// Cluster runs k-means++ seeded Lloyd iterations over unit vectors.
// Confidence is 1/(1+d) where d is the cosine distance to the assigned centroid.
func (c *KMeansClusterer) Cluster(ctx context.Context, vectors [][]float32) (Assignment, error) {
	n := len(vectors)
	if n == 0 {
		return Assignment{Labels: []int{}, Confidence: []float64{}, Degraded: true}, nil
	}

	data, err := unitRows(vectors)
	if err != nil {
		return Assignment{}, err
	}

	k := ChooseK(n)
	rng := rand.New(rand.NewPCG(c.seed, c.seed))
	centroids := initializeCentroidsKMeansPlusPlus(data, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < c.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return Assignment{}, err
		}

		changed := false

		for i, row := range data {
			nearest, _ := findNearestCentroid(row, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed = true
			}
		}

		if !changed && iter > 0 {
			slog.Debug("k-means converged", "iterations", iter+1)

			break
		}

		updateCentroids(data, assignments, centroids)
	}

	confidence := make([]float64, n)
	for i, row := range data {
		confidence[i] = 1 / (1 + cosineDistance(row, centroids[assignments[i]]))
	}

	return Assignment{
		Labels:     relabel(assignments, 1),
		Confidence: confidence,
		Degraded:   true,
	}, nil
}

func unitRows(vectors [][]float32) ([][]float64, error) {
	dim := len(vectors[0])
	if dim == 0 {
		return nil, huberrors.NewValidationError("embedding", "embedding vectors must not be empty")
	}

	rows := make([][]float64, len(vectors))

	for i, v := range vectors {
		if len(v) != dim {
			return nil, huberrors.NewValidationError("embedding", "embedding vectors must share one dimension")
		}

		row := make([]float64, dim)
		for j, x := range v {
			row[j] = float64(x)
		}

		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}

		rows[i] = row
	}

	return rows, nil
}

// initializeCentroidsKMeansPlusPlus picks the first centroid at random and the rest with
// probability proportional to squared distance from the nearest chosen centroid.
func initializeCentroidsKMeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), data[rng.IntN(n)]...))

	distances := make([]float64, n)

	for len(centroids) < k {
		var total float64

		for i, row := range data {
			_, d := findNearestCentroid(row, centroids)
			distances[i] = d * d
			total += distances[i]
		}

		selected := 0

		if total > 0 {
			target := rng.Float64() * total

			var cum float64

			for i, d := range distances {
				cum += d
				if cum >= target {
					selected = i

					break
				}
			}
		} else {
			selected = len(centroids) % n
		}

		centroids = append(centroids, append([]float64(nil), data[selected]...))
	}

	return centroids
}

func findNearestCentroid(row []float64, centroids [][]float64) (int, float64) {
	nearest := 0
	minDist := math.MaxFloat64

	for i, centroid := range centroids {
		if d := cosineDistance(row, centroid); d < minDist {
			minDist = d
			nearest = i
		}
	}

	return nearest, minDist
}

func updateCentroids(data [][]float64, assignments []int, centroids [][]float64) {
	dim := len(data[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))

	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for i, row := range data {
		floats.Add(sums[assignments[i]], row)
		counts[assignments[i]]++
	}

	for i := range centroids {
		if counts[i] > 0 {
			floats.Scale(1/float64(counts[i]), sums[i])
			centroids[i] = sums[i]
		}
	}
}

func cosineDistance(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 1
	}

	return math.Max(0, 1-floats.Dot(a, b)/(na*nb))
}
