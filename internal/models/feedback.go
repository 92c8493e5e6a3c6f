package models

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the channel a feedback item was ingested from.
type Source string

const (
	SourceSlack  Source = "slack"
	SourceJira   Source = "jira"
	SourceLinear Source = "linear"
	SourceUpload Source = "upload"
	SourceGDoc   Source = "gdoc"
	SourceZoom   Source = "zoom"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceSlack, SourceJira, SourceLinear, SourceUpload, SourceGDoc, SourceZoom:
		return true
	default:
		return false
	}
}

// FeedbackItem is a raw unit of customer signal. The pipeline treats it as read-only input.
type FeedbackItem struct {
	ID         uuid.UUID      `json:"id"`
	Source     Source         `json:"source"`
	SourceID   string         `json:"source_id"`
	Text       string         `json:"text"`
	Embedding  []float32      `json:"embedding,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	CustomerID *uuid.UUID     `json:"customer_id,omitempty"`
	Account    *string        `json:"account,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// HasEmbedding reports whether the item has been embedded.
func (f *FeedbackItem) HasEmbedding() bool {
	return len(f.Embedding) > 0
}

// Segment is the business tier of a customer, highest priority first.
type Segment string

const (
	SegmentEnterprise Segment = "ENT"
	SegmentMidMarket  Segment = "MM"
	SegmentSMB        Segment = "SMB"
)

// Segments lists the tiers in descending priority order.
var Segments = []Segment{SegmentEnterprise, SegmentMidMarket, SegmentSMB}

// Customer is an account referenced by feedback items.
type Customer struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	ACV      float64        `json:"acv"`
	Segment  Segment        `json:"segment"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Snapshot is the consistent view of input data a run operates on.
type Snapshot struct {
	Feedback   []FeedbackItem
	Customers  map[uuid.UUID]Customer
	// Unembedded holds items still waiting for an embedding. Only populated when requested.
	Unembedded []FeedbackItem
}
