package scoring

import (
	"math"
	"testing"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSentimentLift(t *testing.T) {
	tests := []struct {
		sentiment float64
		want      float64
	}{
		{-1.0, 1.0},
		{0.0, 0.5},
		{1.0, 0.0},
		{-3.0, 1.0},
		{3.0, 0.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, CalculateSentimentLift(tt.sentiment), 1e-12, "sentiment %v", tt.sentiment)
	}

	assert.Greater(t, CalculateSentimentLift(-0.5), CalculateSentimentLift(0.5))
}

func TestCalculateACVNorm(t *testing.T) {
	low := CalculateACVNorm(50_000, 200_000)
	high := CalculateACVNorm(150_000, 200_000)

	assert.Greater(t, low, 0.0)
	assert.Less(t, low, 1.0)
	assert.Less(t, low, high)
	assert.InDelta(t, 1.0, CalculateACVNorm(200_000, 200_000), 1e-12)
	assert.Zero(t, CalculateACVNorm(10, 0))
	assert.Zero(t, CalculateACVNorm(0, 100))
}

func TestCalculateFrequencyNorm(t *testing.T) {
	tests := []struct {
		name  string
		f30   int
		f90   int
		max30 int
		max90 int
		want  float64
	}{
		{name: "maximum theme", f30: 6, f90: 8, max30: 6, max90: 8, want: 1.0},
		{name: "half recent only", f30: 3, f90: 0, max30: 6, max90: 8, want: 0.35},
		{name: "zero maxima", f30: 0, f90: 0, max30: 0, max90: 0, want: 0},
		{name: "blend", f30: 2, f90: 4, max30: 4, max90: 8, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateFrequencyNorm(tt.f30, tt.f90, tt.max30, tt.max90), 1e-12)
		})
	}
}

func TestMinMax_EqualBoundsIsZero(t *testing.T) {
	assert.Zero(t, MinMax(5, 3, 3))
	assert.InDelta(t, 1.0, MinMax(12, 0, 10), 1e-12)
}

func TestCalculateSegmentPriority(t *testing.T) {
	prio := DefaultSegmentPriorities()

	tests := []struct {
		name   string
		counts map[models.Segment]int
		want   float64
	}{
		{name: "empty", counts: nil, want: 0},
		{name: "enterprise only", counts: map[models.Segment]int{models.SegmentEnterprise: 3}, want: 1.0},
		{
			name: "even mix",
			counts: map[models.Segment]int{
				models.SegmentEnterprise: 2,
				models.SegmentMidMarket:  2,
				models.SegmentSMB:        2,
			},
			want: (2*1.0 + 2*0.7 + 2*0.5) / 6,
		},
		{
			name:   "unknown segment dilutes",
			counts: map[models.Segment]int{models.SegmentEnterprise: 1, models.Segment("GOV"): 1},
			want:   0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateSegmentPriority(tt.counts, prio), 1e-12)
		})
	}
}

func TestTrendSlope(t *testing.T) {
	assert.Zero(t, TrendSlope(nil))
	assert.Zero(t, TrendSlope([]int{7}))
	assert.InDelta(t, 1.0, TrendSlope([]int{0, 1, 2, 3}), 1e-12)
	assert.InDelta(t, -2.0, TrendSlope([]int{6, 4, 2, 0}), 1e-12)
	assert.InDelta(t, 0.0, TrendSlope([]int{3, 3, 3}), 1e-12)
}

func TestCalculateTrendMomentum_Clamped(t *testing.T) {
	steep := []int{0, 20, 40, 60}
	assert.InDelta(t, 0.5, CalculateTrendMomentum(steep), 1e-12)
	assert.InDelta(t, -0.5, CalculateTrendMomentum([]int{60, 40, 20, 0}), 1e-12)
	assert.InDelta(t, 0.05, CalculateTrendMomentum([]int{0, 1, 2}), 1e-12)
}

func TestCalculateDupPenalty(t *testing.T) {
	assert.Zero(t, CalculateDupPenalty(0, DefaultDupThreshold))
	assert.Zero(t, CalculateDupPenalty(0.85, DefaultDupThreshold))
	assert.InDelta(t, 0.45, CalculateDupPenalty(0.9, DefaultDupThreshold), 1e-12)
}

func TestCalculateThemeScore_Components(t *testing.T) {
	in := Inputs{
		Freq30d:       4,
		Freq90d:       6,
		MaxFreq30d:    4,
		MaxFreq90d:    6,
		ACVSum:        100_000,
		MaxACVSum:     100_000,
		Sentiment:     0,
		SegmentCounts: map[models.Segment]int{models.SegmentEnterprise: 2},
		WeeklyCounts:  []int{1, 1, 1, 1},
	}

	got := CalculateThemeScore(in, DefaultConfig())

	assert.InDelta(t, 1.0, got.FrequencyNorm, 1e-12)
	assert.InDelta(t, 1.0, got.ACVNorm, 1e-12)
	assert.InDelta(t, 0.5, got.SentimentLift, 1e-12)
	assert.InDelta(t, 1.0, got.SegmentPriority, 1e-12)
	assert.InDelta(t, 0.0, got.TrendMomentum, 1e-12)
	assert.Zero(t, got.DupPenalty)
	// 0.35 + 0.30 + 0.05 + 0.15 = 0.85
	assert.InDelta(t, 0.85, got.FinalScore, 1e-12)
}

func TestCalculateThemeScore_ClampedToUnitInterval(t *testing.T) {
	heavy := DefaultConfig()
	heavy.Weights = Weights{Frequency: 5, ACV: 5}

	hi := CalculateThemeScore(Inputs{Freq30d: 1, MaxFreq30d: 1, ACVSum: 1, MaxACVSum: 1, Sentiment: 1}, heavy)
	assert.InDelta(t, 1.0, hi.FinalScore, 1e-12)

	negative := DefaultConfig()
	negative.Weights = Weights{Trend: 1, Duplicate: 1}

	lo := CalculateThemeScore(Inputs{WeeklyCounts: []int{40, 0}, SimilarityToHigher: 0.99, Sentiment: 1}, negative)
	assert.Zero(t, lo.FinalScore)
}

func TestCalculateThemeScore_Deterministic(t *testing.T) {
	in := Inputs{
		Freq30d: 3, Freq90d: 5, MaxFreq30d: 7, MaxFreq90d: 9,
		ACVSum: 12345.6, MaxACVSum: 99999.9, Sentiment: -0.3,
		SegmentCounts: map[models.Segment]int{
			models.SegmentEnterprise: 1, models.SegmentMidMarket: 4, models.SegmentSMB: 9,
		},
		WeeklyCounts: []int{0, 2, 1, 5, 3, 8, 4, 6, 7, 2, 9, 11},
	}

	first := CalculateThemeScore(in, DefaultConfig())
	for range 50 {
		assert.Equal(t, first, CalculateThemeScore(in, DefaultConfig()))
	}
}

func TestCalculateThemeScore_MoreAccountsScoreHigher(t *testing.T) {
	segments := map[models.Segment]int{models.SegmentEnterprise: 1, models.SegmentSMB: 1}
	wide := Inputs{Freq30d: 6, Freq90d: 6, MaxFreq30d: 6, MaxFreq90d: 6, ACVSum: 1000, MaxACVSum: 1000, SegmentCounts: segments}
	narrow := wide
	narrow.Freq30d, narrow.Freq90d = 2, 2

	assert.Greater(t, CalculateThemeScore(wide, DefaultConfig()).FinalScore,
		CalculateThemeScore(narrow, DefaultConfig()).FinalScore)
}

func TestCalculateThemeScore_Bounds(t *testing.T) {
	for f30 := 0; f30 <= 10; f30 += 5 {
		for _, acv := range []float64{0, 1, 5e5} {
			for _, s := range []float64{-1, 0, 1} {
				got := CalculateThemeScore(Inputs{
					Freq30d: f30, Freq90d: f30, MaxFreq30d: 10, MaxFreq90d: 10,
					ACVSum: acv, MaxACVSum: 5e5, Sentiment: s,
				}, DefaultConfig())

				for _, v := range []float64{got.FrequencyNorm, got.ACVNorm, got.SentimentLift, got.FinalScore} {
					assert.False(t, math.IsNaN(v))
					assert.GreaterOrEqual(t, v, 0.0)
					assert.LessOrEqual(t, v, 1.0)
				}
			}
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Weights.ACV = -0.1
	require.ErrorIs(t, bad.Validate(), huberrors.ErrConfiguration)

	bad = DefaultConfig()
	bad.Priorities[models.SegmentSMB] = 1.5
	require.ErrorIs(t, bad.Validate(), huberrors.ErrConfiguration)

	bad = DefaultConfig()
	bad.DupThreshold = math.NaN()
	require.ErrorIs(t, bad.Validate(), huberrors.ErrConfiguration)
}
