package insights

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/formbricks/insights/internal/models"
)

const (
	untitled         = "Untitled Insight"
	maxGenericTitle  = 60
	genericCutoff    = 57
	maxFallbackQuote = 3
)

// DefaultEscalationKeywords elevate fallback severity to high when found in a theme label.
var DefaultEscalationKeywords = []string{"enterprise", "security", "compliance", "sso", "saml"}

// SeverityPolicy classifies severity on the deterministic path.
type SeverityPolicy struct {
	EscalationEnabled  bool
	EscalationKeywords []string
}

// DefaultSeverityPolicy escalates on DefaultEscalationKeywords.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{
		EscalationEnabled:  true,
		EscalationKeywords: append([]string(nil), DefaultEscalationKeywords...),
	}
}

// Classify returns high for wide or escalated themes, medium for moderate ones and low otherwise.
func (p SeverityPolicy) Classify(label string, affected, items int) models.Severity {
	switch {
	case affected >= 5 || items >= 10 || p.escalates(label):
		return models.SeverityHigh
	case affected >= 3 || items >= 5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func (p SeverityPolicy) escalates(label string) bool {
	if !p.EscalationEnabled {
		return false
	}

	lower := strings.ToLower(label)
	for _, kw := range p.EscalationKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}

	return false
}

// template is the deterministic content for one theme family. Text fields are format strings
// taking the affected-customer count.
type template struct {
	name           string
	titleTerms     []string
	impactTerms    []string
	title          string
	description    string
	impact         string
	recommendation string
	effort         models.Effort
}

// templates are checked in order against the lowercased label. Impact matching uses its own,
// narrower vocabulary.
var templates = []template{
	{
		name:        "auth",
		titleTerms:  []string{"sso", "saml", "auth"},
		impactTerms: []string{"sso", "saml"},
		title:       "Enterprise SSO/SAML integration blocking deals",
		description: "Enterprise customers across %d accounts cannot roll out the product without SSO/SAML sign-in. " +
			"Their security teams treat single sign-on as a compliance requirement, so this blocks deployment outright.",
		impact: "Enterprise deals stall. Affects %d customer(s). Buyers will not waive security compliance, " +
			"and every delayed contract is recurring revenue left on the table.",
		recommendation: "1) Scope SAML 2.0 support for the major identity providers (Okta, Azure AD, Google Workspace). " +
			"2) Compare building in-house with an identity vendor to shorten delivery. " +
			"3) Place it on the next quarter's roadmap given the enterprise pipeline at stake. " +
			"4) Recruit two or three blocked accounts as design partners to confirm requirements.",
		effort: models.EffortMedium,
	},
	{
		name:        "export",
		titleTerms:  []string{"export", "excel", "csv"},
		impactTerms: []string{"export"},
		title:       "Data export functionality needs enhancement",
		description: "%d customer(s) hit friction when exporting data. They move data into Excel or CSV for analysis, " +
			"reporting and other tools, and today's export options do not cover those daily workflows.",
		impact: "Daily workflow friction for %d customer(s). Export is used constantly, so its gaps add up " +
			"quickly and can push accounts toward churn.",
		recommendation: "1) Talk to affected users about the formats and use cases they export for. " +
			"2) Add bulk export with Excel, CSV and PDF options. " +
			"3) Offer scheduled exports for recurring reports. " +
			"4) Show progress while large exports run.",
		effort: models.EffortMedium,
	},
	{
		name:        "mobile",
		titleTerms:  []string{"mobile", "responsive"},
		impactTerms: []string{"mobile", "responsive"},
		title:       "Mobile responsiveness limiting field team usage",
		description: "%d customer(s) struggle to use the product on phones and tablets. The interface is not built for small " +
			"screens, which hurts field staff and remote teams who depend on mobile access.",
		impact: "Mobile users are effectively shut out. Field and remote teams at %d customer(s) are affected, " +
			"and the share of mobile usage keeps growing.",
		recommendation: "1) Audit the main screens on mobile to find where layouts break. " +
			"2) Make the most used flows responsive first, starting with viewing and light editing. " +
			"3) Weigh a progressive web app against native apps. " +
			"4) Validate changes with mobile users from the affected accounts.",
		effort: models.EffortHigh,
	},
	{
		name:       "search",
		titleTerms: []string{"search", "filter"},
		title:      "Search and filter functionality inadequate",
		description: "%d customer(s) cannot find information quickly. Search and filtering fall short, so users browse " +
			"through data by hand and lose time.",
		recommendation: "1) Review search logs for common queries and the ones that return nothing. " +
			"2) Add fuzzy matching and better tokenization. " +
			"3) Provide advanced filters for the frequent use cases. " +
			"4) Evaluate a dedicated full-text search engine if the current approach cannot keep up.",
		effort: models.EffortMedium,
	},
	{
		name:        "dashboard",
		titleTerms:  []string{"dashboard", "performance", "loading"},
		impactTerms: []string{"dashboard", "performance"},
		title:       "Dashboard performance impacting user engagement",
		description: "%d customer(s) report slow dashboards. Long page loads and sluggish interactions frustrate " +
			"daily users and reduce how often they come back.",
		impact: "Slowness is a daily irritant for %d customer(s). Poor performance lowers engagement and " +
			"makes competing tools look attractive.",
		recommendation: "1) Profile dashboard queries and fix the slowest ones. " +
			"2) Cache expensive computations. " +
			"3) Add skeleton states and progressive loading to improve perceived speed. " +
			"4) Paginate or virtualize large result sets.",
		effort: models.EffortMedium,
	},
	{
		name:        "api",
		titleTerms:  []string{"webhook", "api", "integration"},
		impactTerms: []string{"api", "integration", "webhook"},
		title:       "Build webhook and API integration capabilities",
		description: "%d customer(s) need to connect the product to the rest of their stack. Without webhooks or an API " +
			"they cannot automate and fall back to manual work.",
		impact: "Adoption is capped at %d customer(s). Mid-market and enterprise buyers expect integrations " +
			"as a baseline capability.",
		recommendation: "1) Ask affected customers which systems they need to connect. " +
			"2) Design the webhook event schema and API endpoints for the common workflows. " +
			"3) Build a self-service webhook configuration screen. " +
			"4) Publish integration guides for popular tools such as Zapier and Slack.",
		effort: models.EffortMedium,
	},
	{
		name:       "theme",
		titleTerms: []string{"dark mode", "theme"},
		title:      "Add dark mode theme for reduced eye strain",
		description: "%d customer(s) asked for a dark mode to reduce eye strain, which matters most for people who " +
			"spend long hours in the application.",
		recommendation: "1) Check the design system for dark mode readiness. " +
			"2) Add a theme toggle that remembers the user's choice. " +
			"3) Meet WCAG contrast requirements in both modes. " +
			"4) Follow the operating system preference by default.",
		effort: models.EffortLow,
	},
}

var (
	leadingNumber = regexp.MustCompile(`^\d+\s+`)
	wordPattern   = regexp.MustCompile(`\b\w+\b`)
)

// commonWords never count as key-quote evidence.
var commonWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "needs": {}, "need": {},
	"require": {}, "requires": {}, "required": {}, "attention": {}, "improvement": {},
	"enhancement": {}, "better": {}, "improved": {}, "new": {}, "add": {}, "added": {}, "adding": {},
}

// genericShortenings drop filler phrases from long catch-all titles.
var genericShortenings = []struct{ from, to string }{
	{" requires immediate attention", ""},
	{" is a frequently requested feature", " frequently requested"},
	{" needs improvement", ""},
	{" affecting daily", ""},
}

// fallback builds the single deterministic insight for a cluster.
func (s *Synthesizer) fallback(in ClusterInput, snap snapshot) GeneratedInsight {
	affected := snap.affected()
	lower := strings.ToLower(in.Label)
	clean := cleanTheme(in.Label)

	g := GeneratedInsight{
		Severity:              s.policy.Classify(in.Label, affected, len(in.Items)),
		SupportingFeedbackIDs: snap.feedbackIDs,
		AffectedCustomers:     snap.customers,
	}

	family := "generic"
	if t, ok := matchTemplate(lower, func(t template) []string { return t.titleTerms }); ok {
		family = t.name
		g.Title = t.title
		g.Description = fmt.Sprintf(t.description, affected)
		g.Recommendation = t.recommendation
		g.Effort = t.effort
	} else {
		g.Title = genericTitle(clean)
		g.Description = fmt.Sprintf("%d customer(s) gave feedback about %s. The pattern points to a recurring "+
			"need worth evaluating for the roadmap.", affected, strings.ToLower(clean))
		g.Recommendation = fmt.Sprintf("1) Interview the %d affected customer(s) to find the root cause. "+
			"2) Read through all %d feedback items for shared patterns. "+
			"3) Draft requirements and an effort estimate. "+
			"4) Bring the findings to the product team for prioritization.", affected, len(in.Items))
		g.Effort = models.EffortMedium
	}

	if t, ok := matchTemplate(lower, func(t template) []string { return t.impactTerms }); ok {
		g.Impact = fmt.Sprintf(t.impact, affected)
	} else {
		g.Impact = fmt.Sprintf("Affects %d customer(s). Resolving it should raise satisfaction and remove "+
			"friction from their workflows.", affected)
	}

	g.KeyQuoteIndices = fallbackQuotes(g.Title, in.Items)
	g.KeyQuotes = quotesAt(in.Items, g.KeyQuoteIndices)

	slog.Debug("fallback insight",
		"label", in.Label,
		"template", family,
		"affected", affected,
		"severity", g.Severity,
	)

	return g
}

func matchTemplate(lower string, terms func(template) []string) (template, bool) {
	for _, t := range templates {
		for _, term := range terms(t) {
			if strings.Contains(lower, term) {
				return t, true
			}
		}
	}

	return template{}, false
}

// cleanTheme strips a leading count and turns keyword lists into "a & b".
func cleanTheme(label string) string {
	clean := leadingNumber.ReplaceAllString(label, "")
	clean = strings.ReplaceAll(clean, ", ", " & ")

	return strings.ReplaceAll(clean, "  ", " ")
}

// genericTitle keeps titles to maxGenericTitle characters, first by dropping filler phrases
// and then by cutting at a word boundary.
func genericTitle(clean string) string {
	if len(clean) <= maxGenericTitle {
		return clean
	}

	short := clean
	for _, s := range genericShortenings {
		short = strings.ReplaceAll(short, s.from, s.to)
	}
	if len(short) <= maxGenericTitle {
		return short
	}

	cut := clean[:genericCutoff]
	if i := strings.LastIndex(cut, " "); i >= 0 {
		cut = cut[:i]
	}

	return cut + "..."
}

// fallbackQuotes ranks items by how many title content words they contain and returns the
// best three with at least one hit, or the first three when nothing matches.
func fallbackQuotes(title string, items []models.FeedbackItem) []int {
	var keywords []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(title), -1) {
		if _, common := commonWords[w]; common || len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}

	type scored struct{ idx, hits int }
	scores := make([]scored, len(items))
	for i, item := range items {
		text := strings.ToLower(item.Text)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		scores[i] = scored{idx: i, hits: hits}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].hits > scores[b].hits })

	var picked []int
	for _, s := range scores {
		if s.hits == 0 || len(picked) == maxFallbackQuote {
			break
		}
		picked = append(picked, s.idx)
	}

	if len(picked) == 0 {
		for i := 0; i < len(items) && i < maxFallbackQuote; i++ {
			picked = append(picked, i)
		}
	}

	return picked
}
