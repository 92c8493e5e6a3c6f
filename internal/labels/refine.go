package labels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/formbricks/insights/internal/llm"
)

const (
	maxTitleWords = 6
	maxTitleChars = 45
	refineSamples = 5
	sampleTextCap = 200
	refineTokens  = 50
	refineTemp    = 0.7
	refineSystem  = "You are a product manager naming customer feedback themes."
	conceptJoiner = " & "
	genericSuffix = "needs attention"
)

// templateRules map label vocabulary to a title suffix, checked in order.
var templateRules = []struct {
	terms  []string
	suffix string
}{
	{[]string{"sso", "saml", "auth", "login", "security"}, "blocks enterprise deals"},
	{[]string{"export", "import", "csv", "excel", "pdf"}, "affects workflows"},
	{[]string{"mobile", "crash", "responsive", "tablet"}, "impacts mobile users"},
	{[]string{"search", "filter", "query", "find"}, "needs improvement"},
	{[]string{"dark mode", "theme", "ui", "design"}, "frequently requested"},
	{[]string{"api", "webhook", "integration"}, "in high demand"},
	{[]string{"performance", "slow", "loading", "speed"}, "frustrates users"},
	{[]string{"dashboard", "analytics", "reporting"}, "needs optimization"},
}

// Refiner turns a keyword label into a short business-facing title.
type Refiner struct {
	gen llm.Generator
}

// NewRefiner creates a Refiner. A nil generator always uses the template.
func NewRefiner(gen llm.Generator) *Refiner {
	return &Refiner{gen: gen}
}

// Refine asks the generator for a title and validates it. Titles that are too long or that
// mention a blocked word are rejected in favour of the template. The bool reports whether
// the generator's title was used.
func (r *Refiner) Refine(ctx context.Context, label Label, samples []string) (string, bool) {
	res := llm.Try(ctx, r.gen, refinePrompt(label, samples))
	if !res.OK {
		if res.Reason != llm.ReasonDisabled {
			slog.Warn("label refinement unavailable, using template", "reason", res.Reason, "error", res.Err)
		}

		return Template(label), false
	}

	title := cleanTitle(res.Text)

	blocked := make(map[string]struct{}, len(label.Blocked))
	for _, w := range label.Blocked {
		blocked[w] = struct{}{}
	}

	switch {
	case title == "":
		slog.Warn("label refinement returned an empty title")
	case len(strings.Fields(title)) > maxTitleWords || utf8.RuneCountInString(title) > maxTitleChars:
		slog.Warn("label refinement exceeded length limits", "title", title)
	case containsBlocked(title, blocked):
		slog.Warn("label refinement reintroduced a filtered name")
	default:
		return title, true
	}

	return Template(label), false
}

func refinePrompt(label Label, samples []string) llm.Prompt {
	if len(samples) > refineSamples {
		samples = samples[:refineSamples]
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Keywords describing a cluster of customer feedback: %s\n\n", label.Text)
	b.WriteString("Sample feedback:\n")

	for i, s := range samples {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncateRunes(s, sampleTextCap))
	}

	fmt.Fprintf(&b, "\nWrite one actionable title for this theme in at most %d words and under %d characters. ",
		maxTitleWords, maxTitleChars)
	b.WriteString("Describe the problem or request, not who raised it. ")
	b.WriteString("Never include customer, company or person names. Reply with the title only.")

	return llm.Prompt{
		System:      refineSystem,
		User:        b.String(),
		MaxTokens:   refineTokens,
		Temperature: refineTemp,
	}
}

// Template builds a deterministic title from the first two keywords and a suffix picked by
// matching the label against known categories.
func Template(label Label) string {
	concept := LabelFeatureRequest

	if len(label.Keywords) > 0 {
		top := label.Keywords
		if len(top) > 2 {
			top = top[:2]
		}

		concept = TitleCase(strings.Join(top, conceptJoiner))
	}

	haystack := strings.ToLower(strings.Join(label.Keywords, " "))

	suffix := genericSuffix

	for _, rule := range templateRules {
		if containsAny(haystack, rule.terms) {
			suffix = rule.suffix

			break
		}
	}

	return concept + " " + suffix
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	s = strings.Trim(s, "\"'`“”‘’ ")
	s = strings.TrimSuffix(s, ".")

	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

func containsAny(haystack string, terms []string) bool {
	words := wordsOf(haystack)
	padded := " " + strings.Join(words, " ") + " "

	for _, t := range terms {
		if strings.Contains(padded, " "+t+" ") {
			return true
		}
	}

	return false
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
