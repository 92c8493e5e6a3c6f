package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/formbricks/insights/internal/llm"
	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customer(name string, segment models.Segment, acv float64) models.Customer {
	return models.Customer{ID: uuid.New(), Name: name, Segment: segment, ACV: acv}
}

func feedback(text string, c *models.Customer) models.FeedbackItem {
	item := models.FeedbackItem{
		ID:        uuid.New(),
		Source:    models.SourceSlack,
		Text:      text,
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
	if c != nil {
		id := c.ID
		item.CustomerID = &id
	}

	return item
}

func customerMap(cs ...models.Customer) map[uuid.UUID]models.Customer {
	m := make(map[uuid.UUID]models.Customer, len(cs))
	for _, c := range cs {
		m[c.ID] = c
	}

	return m
}

func scripted(reply string, err error, prompts *[]llm.Prompt) llm.Generator {
	return llm.Func(func(_ context.Context, p llm.Prompt) (string, error) {
		if prompts != nil {
			*prompts = append(*prompts, p)
		}

		return reply, err
	})
}

func TestPriorityScore(t *testing.T) {
	tests := []struct {
		severity models.Severity
		effort   models.Effort
		want     int
	}{
		{models.SeverityCritical, models.EffortLow, 88},
		{models.SeverityCritical, models.EffortHigh, 62},
		{models.SeverityHigh, models.EffortMedium, 62},
		{models.SeverityHigh, models.EffortLow, 75},
		{models.SeverityMedium, models.EffortLow, 62},
		{models.SeverityMedium, models.EffortMedium, 50},
		{models.SeverityLow, models.EffortHigh, 25},
		{models.SeverityLow, models.EffortLow, 50},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.severity, tt.effort), func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityScore(tt.severity, tt.effort))
			assert.Equal(t, tt.want, GeneratedInsight{Severity: tt.severity, Effort: tt.effort}.PriorityScore())
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		names []string
		want  string
	}{
		{"no names", "Export performance affects workflows", []string{"Acme"}, "Export performance affects workflows"},
		{"case insensitive", "ACME needs faster exports", []string{"Acme"}, "needs faster exports"},
		{"longest name first", "Acme Corp - SSO blocks rollout", []string{"Acme", "Acme Corp"}, "SSO blocks rollout"},
		{"trailing debris", "SSO blocks rollout, Globex", []string{"Globex"}, "SSO blocks rollout"},
		{"collapses whitespace", "SSO   for  Initech  teams", []string{"Initech"}, "SSO for teams"},
		{"only a name", "Acme", []string{"Acme"}, ""},
		{"empty names ignored", "Dark mode requested", []string{"", "  "}, "Dark mode requested"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeTitle(tt.title, tt.names))
		})
	}
}

func TestSeverityPolicy_Classify(t *testing.T) {
	disabled := DefaultSeverityPolicy()
	disabled.EscalationEnabled = false

	tests := []struct {
		name     string
		policy   SeverityPolicy
		label    string
		affected int
		items    int
		want     models.Severity
	}{
		{"small theme", DefaultSeverityPolicy(), "Onboarding", 1, 2, models.SeverityLow},
		{"three customers", DefaultSeverityPolicy(), "Onboarding", 3, 3, models.SeverityMedium},
		{"five items", DefaultSeverityPolicy(), "Onboarding", 1, 5, models.SeverityMedium},
		{"five customers", DefaultSeverityPolicy(), "Onboarding", 5, 5, models.SeverityHigh},
		{"ten items", DefaultSeverityPolicy(), "Onboarding", 1, 10, models.SeverityHigh},
		{"escalation keyword", DefaultSeverityPolicy(), "SSO login", 1, 1, models.SeverityHigh},
		{"escalation disabled", disabled, "SSO login", 1, 1, models.SeverityLow},
		{"custom keyword", SeverityPolicy{EscalationEnabled: true, EscalationKeywords: []string{"Billing"}}, "billing errors", 1, 1, models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Classify(tt.label, tt.affected, tt.items))
		})
	}
}

func TestGenericTitle(t *testing.T) {
	tests := []struct {
		name  string
		clean string
		want  string
	}{
		{"short kept", "Onboarding & Checklist", "Onboarding & Checklist"},
		{
			"filler removed",
			"Onboarding checklist for new workspace administrators requires immediate attention",
			"Onboarding checklist for new workspace administrators",
		},
		{
			"cut at word boundary",
			"Calendar sync between shared team calendars and personal calendars drops recurring events",
			"Calendar sync between shared team calendars and personal...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, genericTitle(tt.clean))
		})
	}
}

func TestCleanTheme(t *testing.T) {
	assert.Equal(t, "Export & Csv & Excel", cleanTheme("12 Export, Csv, Excel"))
	assert.Equal(t, "Dark Mode", cleanTheme("Dark Mode"))
}

func TestFallbackQuotes(t *testing.T) {
	items := []models.FeedbackItem{
		feedback("love the product", nil),
		feedback("export to csv times out", nil),
		feedback("our data export is missing columns", nil),
		feedback("export data functionality is broken", nil),
		feedback("another export complaint", nil),
	}

	t.Run("ranks by keyword hits", func(t *testing.T) {
		got := fallbackQuotes("Data export functionality needs enhancement", items)
		assert.Equal(t, []int{3, 2, 1}, got)
	})

	t.Run("first three without hits", func(t *testing.T) {
		got := fallbackQuotes("Needs attention", items)
		assert.Equal(t, []int{0, 1, 2}, got)
	})

	t.Run("fewer items than quotes", func(t *testing.T) {
		got := fallbackQuotes("Needs attention", items[:2])
		assert.Equal(t, []int{0, 1}, got)
	})
}

func TestSynthesizer_Synthesize_fallbackTemplate(t *testing.T) {
	acme := customer("Acme Corp", models.SegmentEnterprise, 140000)
	globex := customer("Globex", models.SegmentMidMarket, 40000)
	items := []models.FeedbackItem{
		feedback("we need csv export for finance", &acme),
		feedback("excel export keeps failing", &globex),
		feedback("export data to excel please", &acme),
		feedback("export is slow", nil),
	}

	s := NewSynthesizer()
	got, err := s.Synthesize(context.Background(), ClusterInput{
		Label:     "Export, Csv, Excel",
		Items:     items,
		Customers: customerMap(acme, globex),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	assert.False(t, g.Generated)
	assert.Equal(t, "Data export functionality needs enhancement", g.Title)
	assert.Equal(t, models.EffortMedium, g.Effort)
	assert.Equal(t, models.SeverityLow, g.Severity)
	assert.Contains(t, g.Description, "2 customer(s)")
	assert.Equal(t, 38, g.PriorityScore())
	require.Len(t, g.AffectedCustomers, 2)
	assert.Equal(t, "Acme Corp", g.AffectedCustomers[0].Name)
	assert.Equal(t, "Globex", g.AffectedCustomers[1].Name)
	assert.Len(t, g.SupportingFeedbackIDs, 4)
	assert.Equal(t, []int{2, 0, 1}, g.KeyQuoteIndices)
	assert.Equal(t, []string{items[2].Text, items[0].Text, items[1].Text}, g.KeyQuotes)
}

func TestSynthesizer_Synthesize_genericFallback(t *testing.T) {
	items := []models.FeedbackItem{
		feedback("onboarding checklist is confusing", nil),
		feedback("checklist steps are unclear", nil),
	}

	got, err := NewSynthesizer().Synthesize(context.Background(), ClusterInput{Label: "3 Onboarding, Checklist", Items: items})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Onboarding & Checklist", got[0].Title)
	assert.Equal(t, models.EffortMedium, got[0].Effort)
	assert.Contains(t, got[0].Description, "1 customer(s)")
	assert.Contains(t, got[0].Recommendation, "all 2 feedback items")
	assert.Empty(t, got[0].AffectedCustomers)
}

func TestSynthesizer_Synthesize_fewItemsSkipGenerator(t *testing.T) {
	var prompts []llm.Prompt
	s := NewSynthesizer(WithGenerator(scripted(`{"insights":[]}`, nil, &prompts)))

	items := []models.FeedbackItem{feedback("dark mode please", nil), feedback("need a dark theme", nil)}
	got, err := s.Synthesize(context.Background(), ClusterInput{Label: "Dark Mode", Items: items})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Empty(t, prompts)
	assert.False(t, got[0].Generated)
	assert.Equal(t, "Add dark mode theme for reduced eye strain", got[0].Title)
	assert.Equal(t, models.EffortLow, got[0].Effort)
}

func TestSynthesizer_Synthesize_generated(t *testing.T) {
	acme := customer("Acme Corp", models.SegmentEnterprise, 140000)
	globex := customer("Globex", models.SegmentMidMarket, 40000)
	items := []models.FeedbackItem{
		feedback("exports take minutes", &acme),
		feedback("the export spinner never stops", &acme),
		feedback("export times out for big reports", &globex),
		feedback("slow exports", nil),
	}

	reply := `{"insights":[{"title":"Acme Corp export performance lags","description":" Exports are slow ",` +
		`"impact":"Finance teams wait","recommendation":"Profile export queries","severity":"HIGH",` +
		`"effort":"low","key_quotes":[3,3,9]}]}`

	var prompts []llm.Prompt
	s := NewSynthesizer(WithGenerator(scripted(reply, nil, &prompts)))

	got, err := s.Synthesize(context.Background(), ClusterInput{
		Label:     "Export, Performance",
		Items:     items,
		Customers: customerMap(acme, globex),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	g := got[0]
	assert.True(t, g.Generated)
	assert.Equal(t, "export performance lags", g.Title)
	assert.Equal(t, "Exports are slow", g.Description)
	assert.Equal(t, models.SeverityHigh, g.Severity)
	assert.Equal(t, models.EffortLow, g.Effort)
	assert.Equal(t, 75, g.PriorityScore())
	assert.Equal(t, []int{1}, g.KeyQuoteIndices)
	assert.Equal(t, []string{items[1].Text}, g.KeyQuotes)
	assert.Len(t, g.SupportingFeedbackIDs, 4)
	assert.Len(t, g.AffectedCustomers, 2)

	require.Len(t, prompts, 1)
	p := prompts[0]
	assert.Equal(t, "cluster_insights", p.SchemaName)
	assert.Equal(t, 1000, p.MaxTokens)
	assert.InDelta(t, 0.7, p.Temperature, 1e-9)
	assert.Contains(t, p.User, "Affected: 2 customer(s)")
	assert.Contains(t, p.User, "1. [Customer A] exports take minutes")
	assert.Contains(t, p.User, "2. [Customer B] export times out for big reports")
	assert.Contains(t, p.User, "4. [Customer ?] slow exports")
	assert.NotContains(t, p.User, acme.ID.String())
	assert.NotContains(t, p.User, "Acme")
}

func TestSynthesizer_Synthesize_malformedOutputFallsBack(t *testing.T) {
	items := []models.FeedbackItem{
		feedback("sso is required by security", nil),
		feedback("saml login missing", nil),
		feedback("okta integration for sso", nil),
	}

	for name, gen := range map[string]llm.Generator{
		"not json":    scripted("Sure! Here is an insight.", nil, nil),
		"no insights": scripted(`{"insights":[]}`, nil, nil),
		"failure":     scripted("", fmt.Errorf("upstream 503"), nil),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := NewSynthesizer(WithGenerator(gen)).Synthesize(context.Background(), ClusterInput{Label: "Sso, Saml", Items: items})
			require.NoError(t, err)
			require.Len(t, got, 1)

			assert.False(t, got[0].Generated)
			assert.Equal(t, "Enterprise SSO/SAML integration blocking deals", got[0].Title)
			assert.Equal(t, models.SeverityHigh, got[0].Severity)
		})
	}
}

func TestSynthesizer_Synthesize_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := llm.Func(func(ctx context.Context, _ llm.Prompt) (string, error) {
		return "", ctx.Err()
	})
	items := []models.FeedbackItem{feedback("a", nil), feedback("b", nil), feedback("c", nil)}

	_, err := NewSynthesizer(WithGenerator(gen)).Synthesize(ctx, ClusterInput{Label: "x", Items: items})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSynthesizer_Synthesize_emptyCluster(t *testing.T) {
	_, err := NewSynthesizer().Synthesize(context.Background(), ClusterInput{Label: "x"})
	require.Error(t, err)
}

func TestSynthesizer_Synthesize_snapshotCoversFullCluster(t *testing.T) {
	var (
		customers []models.Customer
		items     []models.FeedbackItem
	)
	for i := 0; i < 25; i++ {
		c := customer(fmt.Sprintf("Customer %02d", i), models.SegmentSMB, 1000)
		customers = append(customers, c)
		items = append(items, feedback(fmt.Sprintf("export issue number %d", i), &c))
	}

	reply, err := json.Marshal(document{Insights: []payload{{
		Title:     "Export reliability issues",
		Severity:  "medium",
		Effort:    "medium",
		KeyQuotes: []int{20, 21},
	}}})
	require.NoError(t, err)

	var prompts []llm.Prompt
	s := NewSynthesizer(WithGenerator(scripted(string(reply), nil, &prompts)))

	got, err := s.Synthesize(context.Background(), ClusterInput{
		Label:     "Export",
		Items:     items,
		Customers: customerMap(customers...),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Len(t, got[0].SupportingFeedbackIDs, 25)
	assert.Len(t, got[0].AffectedCustomers, 25)
	assert.Equal(t, []int{19}, got[0].KeyQuoteIndices)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].User, "Affected: 25 customer(s)")
	assert.Contains(t, prompts[0].User, "20. [Customer T]")
	assert.NotContains(t, prompts[0].User, "21. [Customer")
}

func TestDiverseSample(t *testing.T) {
	a := customer("A", models.SegmentSMB, 0)
	b := customer("B", models.SegmentSMB, 0)
	items := []models.FeedbackItem{
		feedback("1", &a),
		feedback("2", &a),
		feedback("3", nil),
		feedback("4", &b),
		feedback("5", &b),
	}

	assert.Equal(t, []int{0, 3, 1, 2, 4}, diverseSample(items, 20))
	assert.Equal(t, []int{0, 3, 1}, diverseSample(items, 3))
	assert.Equal(t, []int{0}, diverseSample(items, 1))
}

func TestMapQuotes(t *testing.T) {
	sample := []int{4, 0, 2}

	assert.Equal(t, []int{0, 4}, mapQuotes([]int{2, 1, 2}, sample))
	assert.Equal(t, []int{4}, mapQuotes([]int{0, 7}, sample))
	assert.Equal(t, []int{4}, mapQuotes(nil, sample))
	assert.Equal(t, []int{4, 0, 2}, mapQuotes([]int{1, 2, 3, 1}, sample))
}

func TestCustomerCode(t *testing.T) {
	assert.Equal(t, "A", customerCode(0))
	assert.Equal(t, "Z", customerCode(25))
	assert.Equal(t, "AA", customerCode(26))
	assert.Equal(t, "AB", customerCode(27))
}

func TestNewDraft(t *testing.T) {
	acme := customer("Acme", models.SegmentEnterprise, 140000)
	items := []models.FeedbackItem{
		feedback("one", &acme),
		feedback("two", &acme),
		feedback("three", nil),
	}
	themeID := uuid.New()
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	g := GeneratedInsight{
		Title:                 "Export performance affects workflows",
		Severity:              models.SeverityCritical,
		Effort:                models.EffortLow,
		KeyQuoteIndices:       []int{1},
		SupportingFeedbackIDs: []uuid.UUID{items[0].ID, items[1].ID},
		AffectedCustomers:     []models.AffectedCustomer{{ID: acme.ID, Name: acme.Name, Segment: acme.Segment, ACV: acme.ACV}},
		KeyQuotes:             []string{"two"},
	}

	d := NewDraft(g, &themeID, items, now)

	assert.Equal(t, models.CategoryCustomerFeedback, d.Insight.Category)
	assert.Equal(t, 88, d.Insight.PriorityScore)
	assert.Equal(t, &themeID, d.Insight.ThemeID)
	assert.Equal(t, now, d.Insight.CreatedAt)

	require.Len(t, d.Links, 2)
	assert.Equal(t, items[0].ID, d.Links[0].FeedbackID)
	assert.Equal(t, models.RelevanceSupporting, d.Links[0].RelevanceScore)
	assert.Equal(t, 0, d.Links[0].IsKeyQuote)
	assert.Equal(t, items[1].ID, d.Links[1].FeedbackID)
	assert.Equal(t, models.RelevanceKeyQuote, d.Links[1].RelevanceScore)
	assert.Equal(t, 1, d.Links[1].IsKeyQuote)
	for _, l := range d.Links {
		assert.Equal(t, d.Insight.ID, l.InsightID)
	}

	// The draft owns its snapshot.
	g.AffectedCustomers[0].ACV = 1
	g.KeyQuotes[0] = "changed"
	assert.InDelta(t, 140000, d.Insight.AffectedCustomers[0].ACV, 1e-9)
	assert.Equal(t, "two", d.Insight.KeyQuotes[0])
}

func draft(title string, priority int, feedbackIDs ...uuid.UUID) Draft {
	id := uuid.New()
	d := Draft{Insight: models.Insight{ID: id, Title: title, PriorityScore: priority}}
	for _, fid := range feedbackIDs {
		d.Links = append(d.Links, models.InsightFeedback{InsightID: id, FeedbackID: fid, RelevanceScore: models.RelevanceSupporting})
	}

	return d
}

func TestTitleSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TitleSimilarity("Export performance affects workflows", "Export Performance Affects Workflows "), 1e-9)
	assert.InDelta(t, 0.95, TitleSimilarity("Data export is slow", "Data export is slower"), 1e-9)
	assert.Less(t, TitleSimilarity("Export performance affects workflows", "Mobile layout breaks on tablets"), 0.5)
}

func TestDeduplicate_mergesCaseAndWhitespaceVariants(t *testing.T) {
	f1, f2, f3 := uuid.New(), uuid.New(), uuid.New()
	low := draft("Export performance affects workflows", 50, f1, f2)
	high := draft("Export Performance Affects Workflows ", 75, f2, f3)
	other := draft("Mobile layout breaks on tablets", 63, f3)

	out, stats := Deduplicate([]Draft{low, high, other}, DefaultDedupThreshold)

	require.Len(t, out, 2)
	assert.Equal(t, high.Insight.ID, out[0].Insight.ID)
	assert.Equal(t, other.Insight.ID, out[1].Insight.ID)
	assert.Equal(t, DedupStats{Merged: 1, LinksMoved: 1, LinksDropped: 1}, stats)

	var linked []uuid.UUID
	for _, l := range out[0].Links {
		assert.Equal(t, high.Insight.ID, l.InsightID)
		linked = append(linked, l.FeedbackID)
	}
	assert.ElementsMatch(t, []uuid.UUID{f1, f2, f3}, linked)
}

func TestDeduplicate_keepsFirstOnTie(t *testing.T) {
	a := draft("Search is too slow", 50, uuid.New())
	b := draft("search is too slow", 50, uuid.New())
	c := draft("Search is too slow!", 50, uuid.New())

	out, stats := Deduplicate([]Draft{a, b, c}, DefaultDedupThreshold)

	require.Len(t, out, 1)
	assert.Equal(t, a.Insight.ID, out[0].Insight.ID)
	assert.Len(t, out[0].Links, 3)
	assert.Equal(t, 2, stats.Merged)
}

func TestDeduplicate_discardedOuterStopsComparing(t *testing.T) {
	a := draft("Search is too slow", 25, uuid.New())
	b := draft("Search is too slow", 75, uuid.New())
	c := draft("Search is too slow", 50, uuid.New())

	out, stats := Deduplicate([]Draft{a, b, c}, DefaultDedupThreshold)

	require.Len(t, out, 1)
	assert.Equal(t, b.Insight.ID, out[0].Insight.ID)
	assert.Len(t, out[0].Links, 3)
	assert.Equal(t, 2, stats.Merged)
}

func TestDeduplicate_distinctTitlesUntouched(t *testing.T) {
	drafts := []Draft{
		draft("Export performance affects workflows", 50, uuid.New()),
		draft("SSO blocks enterprise deals", 75, uuid.New()),
	}

	out, stats := Deduplicate(drafts, DefaultDedupThreshold)

	assert.Len(t, out, 2)
	assert.Zero(t, stats.Merged)
}
