// Package scoring turns per-theme statistics into a transparent business-impact score.
//
// Every function here is pure and deterministic. The intermediate components are returned
// alongside the final score so operators can see why a theme ranked where it did.
package scoring

import (
	"log/slog"
	"math"
	"sort"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"gonum.org/v1/gonum/stat"
)

// DefaultDupThreshold is the similarity above which a theme is treated as a duplicate.
const DefaultDupThreshold = 0.85

const (
	recentWeight       = 0.7
	cumulativeWeight   = 0.3
	trendSlopeDivisor  = 20.0
	trendMomentumLimit = 0.5
	dupPenaltyFactor   = 0.5
)

// Weights are independent knobs for each score component. They are not required to sum to 1.
type Weights struct {
	Frequency float64
	ACV       float64
	Sentiment float64
	Segment   float64
	Trend     float64
	Duplicate float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		Frequency: 0.35,
		ACV:       0.30,
		Sentiment: 0.10,
		Segment:   0.15,
		Trend:     0.10,
		Duplicate: 0.10,
	}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	named := []struct {
		key   string
		value float64
	}{
		{"SCORE_WEIGHT_FREQUENCY", w.Frequency},
		{"SCORE_WEIGHT_ACV", w.ACV},
		{"SCORE_WEIGHT_SENTIMENT", w.Sentiment},
		{"SCORE_WEIGHT_SEGMENT", w.Segment},
		{"SCORE_WEIGHT_TREND", w.Trend},
		{"SCORE_WEIGHT_DUPLICATE", w.Duplicate},
	}

	for _, n := range named {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) || n.value < 0 {
			return huberrors.NewConfigurationError(n.key, "must be a finite non-negative number")
		}
	}

	return nil
}

// SegmentPriorities maps each customer segment to its priority in [0,1].
type SegmentPriorities map[models.Segment]float64

// DefaultSegmentPriorities returns ENT=1.0, MM=0.7, SMB=0.5.
func DefaultSegmentPriorities() SegmentPriorities {
	return SegmentPriorities{
		models.SegmentEnterprise: 1.0,
		models.SegmentMidMarket:  0.7,
		models.SegmentSMB:        0.5,
	}
}

// Validate rejects priorities outside [0,1].
func (p SegmentPriorities) Validate() error {
	for seg, v := range p {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return huberrors.NewConfigurationError("SEGMENT_PRIORITY_"+string(seg), "must be within [0,1]")
		}
	}

	return nil
}

// Config bundles everything the scorer needs besides the per-theme inputs.
type Config struct {
	Weights      Weights
	Priorities   SegmentPriorities
	DupThreshold float64
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		Priorities:   DefaultSegmentPriorities(),
		DupThreshold: DefaultDupThreshold,
	}
}

// Validate checks weights, priorities and the duplicate threshold.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}

	if err := c.Priorities.Validate(); err != nil {
		return err
	}

	if math.IsNaN(c.DupThreshold) || c.DupThreshold < 0 || c.DupThreshold > 1 {
		return huberrors.NewConfigurationError("DUP_SIMILARITY_THRESHOLD", "must be within [0,1]")
	}

	return nil
}

// Inputs are the per-theme statistics plus the batch maxima used for normalization.
type Inputs struct {
	Freq30d       int
	Freq90d       int
	MaxFreq30d    int
	MaxFreq90d    int
	ACVSum        float64
	MaxACVSum     float64
	Sentiment     float64
	SegmentCounts map[models.Segment]int
	WeeklyCounts  []int
	// SimilarityToHigher is the similarity to any higher-scored theme, computed by the caller.
	SimilarityToHigher float64
}

// ThemeScoreComponents exposes every normalized component next to the final score.
type ThemeScoreComponents struct {
	FrequencyNorm   float64 `json:"frequency_norm"`
	ACVNorm         float64 `json:"acv_norm"`
	SentimentLift   float64 `json:"sentiment_lift"`
	SegmentPriority float64 `json:"segment_priority"`
	TrendSlope      float64 `json:"trend_slope"`
	TrendMomentum   float64 `json:"trend_momentum"`
	DupPenalty      float64 `json:"dup_penalty"`
	FinalScore      float64 `json:"final_score"`
}

// LogValue implements slog.LogValuer.
func (c ThemeScoreComponents) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("frequency_norm", c.FrequencyNorm),
		slog.Float64("acv_norm", c.ACVNorm),
		slog.Float64("sentiment_lift", c.SentimentLift),
		slog.Float64("segment_priority", c.SegmentPriority),
		slog.Float64("trend_momentum", c.TrendMomentum),
		slog.Float64("dup_penalty", c.DupPenalty),
		slog.Float64("final_score", c.FinalScore),
	)
}

// CalculateThemeScore computes all components and the clamped final score.
func CalculateThemeScore(in Inputs, cfg Config) ThemeScoreComponents {
	slope := TrendSlope(in.WeeklyCounts)

	c := ThemeScoreComponents{
		FrequencyNorm:   CalculateFrequencyNorm(in.Freq30d, in.Freq90d, in.MaxFreq30d, in.MaxFreq90d),
		ACVNorm:         CalculateACVNorm(in.ACVSum, in.MaxACVSum),
		SentimentLift:   CalculateSentimentLift(in.Sentiment),
		SegmentPriority: CalculateSegmentPriority(in.SegmentCounts, cfg.Priorities),
		TrendSlope:      slope,
		TrendMomentum:   trendMomentumFromSlope(slope),
		DupPenalty:      CalculateDupPenalty(in.SimilarityToHigher, cfg.DupThreshold),
	}

	w := cfg.Weights
	raw := w.Frequency*c.FrequencyNorm +
		w.ACV*c.ACVNorm +
		w.Sentiment*c.SentimentLift +
		w.Segment*c.SegmentPriority +
		w.Trend*c.TrendMomentum -
		w.Duplicate*c.DupPenalty

	c.FinalScore = clamp01(raw)

	return c
}

// MinMax scales v into [0,1] relative to [lo, hi]. It is 0 when hi == lo.
func MinMax(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}

	return clamp01((v - lo) / (hi - lo))
}

// CalculateFrequencyNorm blends the 30-day and cumulative 90-day account counts.
func CalculateFrequencyNorm(freq30d, freq90d, maxFreq30d, maxFreq90d int) float64 {
	recent := MinMax(float64(freq30d), 0, float64(maxFreq30d))
	cumulative := MinMax(float64(freq90d), 0, float64(maxFreq90d))

	return clamp01(recentWeight*recent + cumulativeWeight*cumulative)
}

// CalculateACVNorm log-damps summed ACV against the batch maximum.
func CalculateACVNorm(acvSum, maxACVSum float64) float64 {
	if maxACVSum <= 0 || acvSum <= 0 {
		return 0
	}

	return clamp01(math.Log1p(acvSum) / math.Log1p(maxACVSum))
}

// CalculateSentimentLift maps sentiment in [-1,1] to urgency in [0,1]. Negative sentiment lifts.
func CalculateSentimentLift(sentiment float64) float64 {
	return clamp01((1 - sentiment) / 2)
}

// CalculateSegmentPriority is the count-weighted mean segment priority. Segments missing from
// priorities contribute zero but still count towards the total.
func CalculateSegmentPriority(counts map[models.Segment]int, priorities SegmentPriorities) float64 {
	if len(counts) == 0 {
		return 0
	}

	segments := make([]models.Segment, 0, len(counts))
	for seg := range counts {
		segments = append(segments, seg)
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i] < segments[j] })

	var weighted float64

	var total int

	for _, seg := range segments {
		n := counts[seg]
		if n <= 0 {
			continue
		}

		weighted += float64(n) * priorities[seg]
		total += n
	}

	if total == 0 {
		return 0
	}

	return clamp01(weighted / float64(total))
}

// TrendSlope is the ordinary least squares slope of counts against their index.
// Fewer than two points have no slope.
func TrendSlope(weeklyCounts []int) float64 {
	if len(weeklyCounts) < 2 {
		return 0
	}

	xs := make([]float64, len(weeklyCounts))
	ys := make([]float64, len(weeklyCounts))

	for i, c := range weeklyCounts {
		xs[i] = float64(i)
		ys[i] = float64(c)
	}

	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}

	return beta
}

// CalculateTrendMomentum scales the weekly slope into [-0.5, 0.5].
func CalculateTrendMomentum(weeklyCounts []int) float64 {
	return trendMomentumFromSlope(TrendSlope(weeklyCounts))
}

func trendMomentumFromSlope(slope float64) float64 {
	return math.Max(-trendMomentumLimit, math.Min(trendMomentumLimit, slope/trendSlopeDivisor))
}

// CalculateDupPenalty penalizes themes that are near-duplicates of a higher-scored theme.
func CalculateDupPenalty(similarity, threshold float64) float64 {
	if similarity > threshold {
		return dupPenaltyFactor * similarity
	}

	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return math.Max(0, math.Min(1, v))
}
