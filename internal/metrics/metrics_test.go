package metrics

import (
	"testing"
	"time"

	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func item(daysAgo int, account string, customer *uuid.UUID) models.FeedbackItem {
	f := models.FeedbackItem{
		ID:         uuid.New(),
		Source:     models.SourceSlack,
		Text:       "feedback",
		CreatedAt:  now.Add(-time.Duration(daysAgo) * 24 * time.Hour),
		CustomerID: customer,
	}
	if account != "" {
		f.Account = &account
	}

	return f
}

func TestCalculator_ThemeStats_Frequency(t *testing.T) {
	items := []models.FeedbackItem{
		item(1, "acme", nil),
		item(2, "acme", nil),
		item(10, "globex", nil),
		item(45, "initech", nil),
		item(60, "acme", nil),
		item(120, "umbrella", nil),
		item(5, "", nil),
	}

	stats := NewCalculator().ThemeStats(now, items, nil)

	assert.Equal(t, 3, stats.Freq30d, "acme, globex and the unknown bucket")
	assert.Equal(t, 4, stats.Freq90d, "30-day accounts plus initech")
	assert.Zero(t, stats.Sentiment)
}

func TestCalculator_ThemeStats_ACVDeduplicatedByCustomer(t *testing.T) {
	ent := models.Customer{ID: uuid.New(), Name: "Acme", ACV: 140_000, Segment: models.SegmentEnterprise}
	smb := models.Customer{ID: uuid.New(), Name: "Tiny", ACV: 5_000, Segment: models.SegmentSMB}
	customers := map[uuid.UUID]models.Customer{ent.ID: ent, smb.ID: smb}

	var items []models.FeedbackItem
	for range 5 {
		items = append(items, item(3, "acme", &ent.ID))
	}

	items = append(items, item(4, "tiny", &smb.ID))

	orphan := uuid.New()
	items = append(items, item(4, "ghost", &orphan))

	stats := NewCalculator().ThemeStats(now, items, customers)

	assert.InDelta(t, 145_000.0, stats.ACVSum, 1e-9)
	assert.Equal(t, map[models.Segment]int{models.SegmentEnterprise: 1, models.SegmentSMB: 1}, stats.SegmentCounts)
}

func TestWeeklyCounts(t *testing.T) {
	items := []models.FeedbackItem{
		item(0, "a", nil),
		item(1, "a", nil),
		item(8, "a", nil),
		item(83, "a", nil),
		item(84, "a", nil),
		item(-2, "a", nil),
	}

	got := WeeklyCounts(now, items, DefaultWeeks)

	require.Len(t, got, 12)
	assert.Equal(t, 3, got[11], "current week incl. future-dated item")
	assert.Equal(t, 1, got[10])
	assert.Equal(t, 1, got[0], "day 83 is in the oldest week")
	assert.Equal(t, 5, sum(got), "day 84 falls outside the window")
}

func TestCalculator_Calculate_Maxima(t *testing.T) {
	c := NewCalculator()
	cust := models.Customer{ID: uuid.New(), ACV: 50_000, Segment: models.SegmentMidMarket}
	customers := map[uuid.UUID]models.Customer{cust.ID: cust}

	res := c.Calculate(now, [][]models.FeedbackItem{
		{item(1, "a", nil), item(2, "b", nil)},
		{item(40, "c", &cust.ID)},
	}, customers)

	require.Len(t, res.Themes, 2)
	assert.Equal(t, Maxima{Freq30d: 2, Freq90d: 2, ACVSum: 50_000}, res.Maxima)

	in := res.ScoreInputs(1, 0)
	assert.Equal(t, 0, in.Freq30d)
	assert.Equal(t, 1, in.Freq90d)
	assert.Equal(t, 2, in.MaxFreq30d)
	assert.InDelta(t, 50_000.0, in.MaxACVSum, 1e-9)
}

func TestCalculator_Calculate_Deterministic(t *testing.T) {
	customers := map[uuid.UUID]models.Customer{}

	var items []models.FeedbackItem

	for i := range 30 {
		c := models.Customer{ID: uuid.New(), ACV: 1000.1 * float64(i+1), Segment: models.Segments[i%3]}
		customers[c.ID] = c
		items = append(items, item(i*2, c.Name, &c.ID))
	}

	first := NewCalculator().Calculate(now, [][]models.FeedbackItem{items}, customers)
	for range 20 {
		assert.Equal(t, first, NewCalculator().Calculate(now, [][]models.FeedbackItem{items}, customers))
	}
}

type fixedSentiment float64

func (f fixedSentiment) Sentiment([]models.FeedbackItem) float64 { return float64(f) }

func TestCalculator_WithSentimentSource(t *testing.T) {
	c := NewCalculator(WithSentimentSource(fixedSentiment(-0.4)), WithWeeks(4))
	stats := c.ThemeStats(now, []models.FeedbackItem{item(1, "a", nil)}, nil)

	assert.InDelta(t, -0.4, stats.Sentiment, 1e-12)
	assert.Len(t, stats.WeeklyCounts, 4)
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}

	return total
}
