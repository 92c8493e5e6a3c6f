package models

import (
	"time"

	"github.com/google/uuid"
)

// Theme is a cohesive group of feedback discovered by clustering.
// Centroid is the mean of the member embeddings at creation time and is never recomputed.
type Theme struct {
	ID          uuid.UUID `json:"id"`
	Label       string    `json:"label"`
	Description *string   `json:"description,omitempty"`
	Centroid    []float32 `json:"centroid,omitempty"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FeedbackTheme links a feedback item to its theme with a membership confidence in [0,1].
type FeedbackTheme struct {
	FeedbackID uuid.UUID `json:"feedback_id"`
	ThemeID    uuid.UUID `json:"theme_id"`
	Confidence float64   `json:"confidence"`
}

// ThemeMetrics holds the per-theme statistics and final score. One row per theme.
type ThemeMetrics struct {
	ThemeID    uuid.UUID `json:"theme_id"`
	Freq30d    int       `json:"freq_30d"`
	Freq90d    int       `json:"freq_90d"`
	ACVSum     float64   `json:"acv_sum"`
	Sentiment  float64   `json:"sentiment"`
	Trend      float64   `json:"trend"`
	DupPenalty float64   `json:"dup_penalty"`
	Score      float64   `json:"score"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ThemeMembership is the current theme assignment, used to rescore themes without reclustering.
type ThemeMembership struct {
	Themes    []Theme
	Members   map[uuid.UUID][]FeedbackItem
	Customers map[uuid.UUID]Customer
}
