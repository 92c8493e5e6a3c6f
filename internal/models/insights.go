package models

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the ordinal impact level of an insight.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free text to a Severity, defaulting to medium.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityMedium
	}
}

// Score maps the severity onto the 0-100 priority scale.
func (s Severity) Score() int {
	switch s {
	case SeverityLow:
		return 25
	case SeverityHigh:
		return 75
	case SeverityCritical:
		return 100
	default:
		return 50
	}
}

// Effort is the ordinal implementation cost of an insight.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ParseEffort maps free text to an Effort, defaulting to medium.
func ParseEffort(s string) Effort {
	switch Effort(s) {
	case EffortLow, EffortMedium, EffortHigh:
		return Effort(s)
	default:
		return EffortMedium
	}
}

// Score maps the effort onto the 0-100 priority scale. Lower effort scores higher.
func (e Effort) Score() int {
	switch e {
	case EffortLow:
		return 75
	case EffortHigh:
		return 25
	default:
		return 50
	}
}

// InsightCategory distinguishes clustering-derived insights from other producers.
type InsightCategory string

const (
	CategoryCustomerFeedback InsightCategory = "customer_feedback"
	CategoryCompetitiveIntel InsightCategory = "competitive_intel"
)

// AffectedCustomer is the frozen customer record captured when an insight is created.
type AffectedCustomer struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Segment Segment   `json:"segment"`
	ACV     float64   `json:"acv"`
}

// Insight is an actionable synthesized unit. SupportingFeedbackIDs, AffectedCustomers and
// KeyQuotes are snapshots taken at generation time and are never recomputed from live rows.
type Insight struct {
	ID                    uuid.UUID          `json:"id"`
	ThemeID               *uuid.UUID         `json:"theme_id,omitempty"`
	Category              InsightCategory    `json:"category"`
	Title                 string             `json:"title"`
	Description           string             `json:"description"`
	Impact                string             `json:"impact"`
	Recommendation        string             `json:"recommendation"`
	Severity              Severity           `json:"severity"`
	Effort                Effort             `json:"effort"`
	PriorityScore         int                `json:"priority_score"`
	SupportingFeedbackIDs []uuid.UUID        `json:"supporting_feedback_ids"`
	AffectedCustomers     []AffectedCustomer `json:"affected_customers"`
	KeyQuotes             []string           `json:"key_quotes"`
	CreatedAt             time.Time          `json:"created_at"`
}

// Relevance scores recorded on insight links.
const (
	RelevanceKeyQuote   = 95
	RelevanceSupporting = 80
)

// InsightFeedback links an insight to a feedback item actually used to synthesize it.
type InsightFeedback struct {
	InsightID      uuid.UUID `json:"insight_id"`
	FeedbackID     uuid.UUID `json:"feedback_id"`
	RelevanceScore int       `json:"relevance_score"`
	IsKeyQuote     int       `json:"is_key_quote"`
}

// DerivedState is everything a run replaces in a single transaction.
type DerivedState struct {
	Themes          []Theme
	FeedbackThemes  []FeedbackTheme
	Metrics         []ThemeMetrics
	Insights        []Insight
	InsightFeedback []InsightFeedback
}
