// Package insights turns clustered feedback into actionable insight records.
//
// A Synthesizer produces one or more GeneratedInsight values per cluster, either through the
// optional text-generation collaborator or through deterministic templates. Deduplicate then
// merges insights whose titles are near-identical across clusters.
package insights

import (
	"math"
	"time"

	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
)

// ClusterInput is everything the synthesizer may look at for one cluster.
type ClusterInput struct {
	Label string
	Items []models.FeedbackItem
	// Customers is the customer table of the run snapshot, keyed by id.
	Customers map[uuid.UUID]models.Customer
}

// GeneratedInsight is the synthesizer output for a cluster. The snapshot fields are computed
// from every item of the cluster, never from the prompt sample.
type GeneratedInsight struct {
	Title          string
	Description    string
	Impact         string
	Recommendation string
	Severity       models.Severity
	Effort         models.Effort
	// KeyQuoteIndices are 0-based positions in ClusterInput.Items.
	KeyQuoteIndices []int

	SupportingFeedbackIDs []uuid.UUID
	AffectedCustomers     []models.AffectedCustomer
	KeyQuotes             []string

	// Generated is true when the text-generation collaborator produced the content.
	Generated bool
}

// PriorityScore is (severity + effort) / 2 on the 0-100 scale, halves rounded to even:
// critical/low is 88, critical/high and high/medium are 62.
func PriorityScore(s models.Severity, e models.Effort) int {
	return int(math.RoundToEven(float64(s.Score()+e.Score()) / 2))
}

// PriorityScore returns the priority of g.
func (g GeneratedInsight) PriorityScore() int {
	return PriorityScore(g.Severity, g.Effort)
}

// Draft is an insight together with the feedback links it will be persisted with.
type Draft struct {
	Insight models.Insight
	Links   []models.InsightFeedback
}

// NewDraft builds the persisted form of g. Only the supporting feedback is linked; key quotes
// are flagged and carry the higher relevance score.
func NewDraft(g GeneratedInsight, themeID *uuid.UUID, items []models.FeedbackItem, now time.Time) Draft {
	id := uuid.Must(uuid.NewV7())

	keys := make(map[int]struct{}, len(g.KeyQuoteIndices))
	for _, idx := range g.KeyQuoteIndices {
		keys[idx] = struct{}{}
	}

	supporting := make(map[uuid.UUID]struct{}, len(g.SupportingFeedbackIDs))
	for _, fid := range g.SupportingFeedbackIDs {
		supporting[fid] = struct{}{}
	}

	links := make([]models.InsightFeedback, 0, len(g.SupportingFeedbackIDs))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		if _, ok := supporting[item.ID]; !ok {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		link := models.InsightFeedback{
			InsightID:      id,
			FeedbackID:     item.ID,
			RelevanceScore: models.RelevanceSupporting,
		}
		if _, ok := keys[i]; ok {
			link.RelevanceScore = models.RelevanceKeyQuote
			link.IsKeyQuote = 1
		}
		links = append(links, link)
	}

	return Draft{
		Insight: models.Insight{
			ID:                    id,
			ThemeID:               themeID,
			Category:              models.CategoryCustomerFeedback,
			Title:                 g.Title,
			Description:           g.Description,
			Impact:                g.Impact,
			Recommendation:        g.Recommendation,
			Severity:              g.Severity,
			Effort:                g.Effort,
			PriorityScore:         g.PriorityScore(),
			SupportingFeedbackIDs: append([]uuid.UUID(nil), g.SupportingFeedbackIDs...),
			AffectedCustomers:     append([]models.AffectedCustomer(nil), g.AffectedCustomers...),
			KeyQuotes:             append([]string(nil), g.KeyQuotes...),
			CreatedAt:             now,
		},
		Links: links,
	}
}

// snapshot captures the evidence fields from the full cluster.
type snapshot struct {
	feedbackIDs []uuid.UUID
	customers   []models.AffectedCustomer
	// customerIDs are the distinct linked customers in order of first appearance.
	customerIDs []uuid.UUID
}

func takeSnapshot(in ClusterInput) snapshot {
	s := snapshot{feedbackIDs: make([]uuid.UUID, 0, len(in.Items))}
	seen := make(map[uuid.UUID]struct{})

	for _, item := range in.Items {
		s.feedbackIDs = append(s.feedbackIDs, item.ID)

		if item.CustomerID == nil {
			continue
		}
		cid := *item.CustomerID
		if _, ok := seen[cid]; ok {
			continue
		}
		seen[cid] = struct{}{}
		s.customerIDs = append(s.customerIDs, cid)

		if c, ok := in.Customers[cid]; ok {
			s.customers = append(s.customers, models.AffectedCustomer{
				ID:      c.ID,
				Name:    c.Name,
				Segment: c.Segment,
				ACV:     c.ACV,
			})
		}
	}

	return s
}

// affected is the displayed distinct-customer count. Clusters without linked customers count
// as a single reporter.
func (s snapshot) affected() int {
	if len(s.customerIDs) == 0 {
		return 1
	}

	return len(s.customerIDs)
}

func quotesAt(items []models.FeedbackItem, indices []int) []string {
	quotes := make([]string, 0, len(indices))
	for _, idx := range indices {
		quotes = append(quotes, items[idx].Text)
	}

	return quotes
}
