// Package metrics computes per-theme frequency, ACV, sentiment, segment and trend statistics.
package metrics

import (
	"time"

	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/scoring"
	"github.com/google/uuid"
)

const (
	// DefaultWeeks is the length of the weekly count series.
	DefaultWeeks = 12
	// UnknownAccount buckets feedback without an account label.
	UnknownAccount = "unknown"

	day  = 24 * time.Hour
	week = 7 * day
)

// SentimentSource supplies the average sentiment in [-1, 1] for a theme's feedback.
type SentimentSource interface {
	Sentiment(items []models.FeedbackItem) float64
}

// NeutralSentiment reports 0 for every theme.
type NeutralSentiment struct{}

// Sentiment implements SentimentSource.
func (NeutralSentiment) Sentiment([]models.FeedbackItem) float64 { return 0 }

// ThemeStats are the raw statistics for one theme.
type ThemeStats struct {
	Freq30d       int
	Freq90d       int
	ACVSum        float64
	Sentiment     float64
	SegmentCounts map[models.Segment]int
	WeeklyCounts  []int
}

// Maxima are the batch-wide maxima used for normalization.
type Maxima struct {
	Freq30d int
	Freq90d int
	ACVSum  float64
}

// Result holds stats parallel to the input themes plus the batch maxima.
type Result struct {
	Themes []ThemeStats
	Maxima Maxima
}

// ScoreInputs builds the scorer input for theme i.
func (r Result) ScoreInputs(i int, similarityToHigher float64) scoring.Inputs {
	s := r.Themes[i]

	return scoring.Inputs{
		Freq30d:            s.Freq30d,
		Freq90d:            s.Freq90d,
		MaxFreq30d:         r.Maxima.Freq30d,
		MaxFreq90d:         r.Maxima.Freq90d,
		ACVSum:             s.ACVSum,
		MaxACVSum:          r.Maxima.ACVSum,
		Sentiment:          s.Sentiment,
		SegmentCounts:      s.SegmentCounts,
		WeeklyCounts:       s.WeeklyCounts,
		SimilarityToHigher: similarityToHigher,
	}
}

// Calculator computes theme statistics.
type Calculator struct {
	weeks     int
	sentiment SentimentSource
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithWeeks sets the weekly series length.
func WithWeeks(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.weeks = n
		}
	}
}

// WithSentimentSource replaces the neutral sentiment placeholder.
func WithSentimentSource(s SentimentSource) Option {
	return func(c *Calculator) {
		if s != nil {
			c.sentiment = s
		}
	}
}

// NewCalculator creates a Calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{weeks: DefaultWeeks, sentiment: NeutralSentiment{}}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Calculate computes stats for every theme and the maxima across them.
func (c *Calculator) Calculate(now time.Time, themes [][]models.FeedbackItem, customers map[uuid.UUID]models.Customer) Result {
	res := Result{Themes: make([]ThemeStats, len(themes))}

	for i, items := range themes {
		s := c.ThemeStats(now, items, customers)
		res.Themes[i] = s

		res.Maxima.Freq30d = max(res.Maxima.Freq30d, s.Freq30d)
		res.Maxima.Freq90d = max(res.Maxima.Freq90d, s.Freq90d)
		res.Maxima.ACVSum = max(res.Maxima.ACVSum, s.ACVSum)
	}

	return res
}

// ThemeStats computes the statistics of a single theme.
func (c *Calculator) ThemeStats(now time.Time, items []models.FeedbackItem, customers map[uuid.UUID]models.Customer) ThemeStats {
	cutoff30 := now.Add(-30 * day)
	cutoff90 := now.Add(-90 * day)

	accounts30 := make(map[string]struct{})
	accounts90 := make(map[string]struct{})
	linked := make(map[uuid.UUID]models.Customer)

	for _, item := range items {
		account := UnknownAccount
		if item.Account != nil && *item.Account != "" {
			account = *item.Account
		}

		// The 90-day window is cumulative: anything within 30 days is also within 90.
		switch {
		case !item.CreatedAt.Before(cutoff30):
			accounts30[account] = struct{}{}
			accounts90[account] = struct{}{}
		case !item.CreatedAt.Before(cutoff90):
			accounts90[account] = struct{}{}
		}

		if item.CustomerID != nil {
			if cust, ok := customers[*item.CustomerID]; ok {
				linked[cust.ID] = cust
			}
		}
	}

	stats := ThemeStats{
		Freq30d:       len(accounts30),
		Freq90d:       len(accounts90),
		Sentiment:     c.sentiment.Sentiment(items),
		SegmentCounts: make(map[models.Segment]int),
		WeeklyCounts:  WeeklyCounts(now, items, c.weeks),
	}

	// Sum in a stable order so the float result is reproducible.
	for _, cust := range sortedCustomers(linked) {
		stats.ACVSum += cust.ACV
		stats.SegmentCounts[cust.Segment]++
	}

	return stats
}

// WeeklyCounts buckets items into n weekly counts ending at now, oldest first.
// Items newer than now fall into the latest week; items older than n weeks are ignored.
func WeeklyCounts(now time.Time, items []models.FeedbackItem, n int) []int {
	counts := make([]int, n)
	if n == 0 {
		return counts
	}

	for _, item := range items {
		age := now.Sub(item.CreatedAt)
		if age < 0 {
			age = 0
		}

		idx := int(age / week)
		if idx >= n {
			continue
		}

		counts[n-1-idx]++
	}

	return counts
}
