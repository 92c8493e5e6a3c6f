package clustering

import (
	"math"

	"github.com/formbricks/insights/internal/huberrors"
	"gonum.org/v1/gonum/mat"
)

// distanceMatrix holds pairwise cosine distances for a batch of vectors.
type distanceMatrix struct {
	n    int
	gram *mat.SymDense
}

// newDistanceMatrix normalizes every vector and computes the Gram matrix X·Xᵀ,
// so that distance(i, j) = 1 - <x_i, x_j>.
func newDistanceMatrix(vectors [][]float32) (*distanceMatrix, error) {
	n := len(vectors)
	if n == 0 {
		return &distanceMatrix{}, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, huberrors.NewValidationError("embedding", "embedding vectors must not be empty")
	}

	data := make([]float64, n*dim)

	for i, v := range vectors {
		if len(v) != dim {
			return nil, huberrors.NewValidationError("embedding", "embedding vectors must share one dimension")
		}

		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}

		norm = math.Sqrt(norm)

		row := data[i*dim : (i+1)*dim]
		for j, x := range v {
			if norm > 0 {
				row[j] = float64(x) / norm
			}
		}
	}

	x := mat.NewDense(n, dim, data)
	gram := mat.NewSymDense(n, nil)
	gram.SymOuterK(1, x)

	return &distanceMatrix{n: n, gram: gram}, nil
}

// At returns the cosine distance between i and j, clamped to [0, 2].
func (d *distanceMatrix) At(i, j int) float64 {
	if i == j {
		return 0
	}

	return math.Max(0, math.Min(2, 1-d.gram.At(i, j)))
}

// neighbors returns every j != i with distance(i, j) <= eps, in ascending index order.
func (d *distanceMatrix) neighbors(i int, eps float64) []int {
	var out []int

	for j := range d.n {
		if j != i && d.At(i, j) <= eps {
			out = append(out, j)
		}
	}

	return out
}

// coreDistances returns, for every point, the distance to its k-th nearest other point.
// Points with fewer than k others use their farthest neighbor.
func (d *distanceMatrix) coreDistances(k int) []float64 {
	out := make([]float64, d.n)
	if d.n < 2 {
		return out
	}

	if k < 1 {
		k = 1
	}

	row := make([]float64, 0, d.n-1)

	for i := range d.n {
		row = row[:0]

		for j := range d.n {
			if j != i {
				row = append(row, d.At(i, j))
			}
		}

		out[i] = kthSmallest(row, min(k, len(row)))
	}

	return out
}
