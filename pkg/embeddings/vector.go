package embeddings

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when vectors of different lengths are combined.
var ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Zero vectors have similarity 0 with everything.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	return math.Max(-1, math.Min(1, sim))
}

// CosineDistance returns 1 - Cosine(a, b), in [0, 2].
func CosineDistance(a, b []float32) float64 {
	return 1 - Cosine(a, b)
}

// Mean returns the element-wise mean of vectors. It does not normalize the result.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)

	for _, v := range vectors {
		if len(v) != dim {
			return nil, ErrDimensionMismatch
		}

		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	out := make([]float32, dim)
	n := float64(len(vectors))

	for i := range sum {
		out[i] = float32(sum[i] / n)
	}

	return out, nil
}
