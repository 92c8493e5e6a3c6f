package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "scale invariant", a: []float32{2, 0}, b: []float32{5, 0}, want: 1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{0, 3}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestMean(t *testing.T) {
	t.Run("averages element-wise", func(t *testing.T) {
		got, err := Mean([][]float32{{1, 2}, {3, 4}})
		require.NoError(t, err)
		assert.Equal(t, []float32{2, 3}, got)
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := Mean(nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Mean([][]float32{{1, 2}, {3}})
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestNormalized_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	out := Normalized(in)

	assert.Equal(t, []float32{3, 4}, in)
	assert.InDelta(t, 1.0, math.Hypot(float64(out[0]), float64(out[1])), 1e-6)
}
