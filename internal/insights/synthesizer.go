package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/llm"
	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
)

const (
	// DefaultSampleSize caps the feedback shown to the generator.
	DefaultSampleSize = 20

	minGeneratedItems = 3
	promptTextCap     = 200
	maxKeyQuotes      = 3
	synthesisTokens   = 1000
	synthesisTemp     = 0.7
	schemaName        = "cluster_insights"
	synthesisSystem   = "You are a senior product manager who turns customer feedback into actionable insights."
)

// document is the JSON shape requested from the generator.
type document struct {
	Insights []payload `json:"insights" jsonschema:"description=Exactly one insight synthesizing the feedback"`
}

type payload struct {
	Title          string `json:"title" jsonschema:"description=At most 6 words and under 45 characters. No customer or person names"`
	Description    string `json:"description" jsonschema:"description=The core issue or opportunity users are experiencing"`
	Impact         string `json:"impact" jsonschema:"description=Why it matters including business impact"`
	Recommendation string `json:"recommendation" jsonschema:"description=Two or three concrete next steps"`
	Severity       string `json:"severity" jsonschema:"enum=low,enum=medium,enum=high,enum=critical"`
	Effort         string `json:"effort" jsonschema:"enum=low,enum=medium,enum=high"`
	KeyQuotes      []int  `json:"key_quotes" jsonschema:"description=1-based numbers of the most representative feedback items (max 3)"`
}

// Synthesizer produces insights for one cluster at a time. It is safe for concurrent use.
type Synthesizer struct {
	gen        llm.Generator
	policy     SeverityPolicy
	sampleSize int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithGenerator enables the generation path.
func WithGenerator(g llm.Generator) Option {
	return func(s *Synthesizer) { s.gen = g }
}

// WithSeverityPolicy overrides the deterministic severity policy.
func WithSeverityPolicy(p SeverityPolicy) Option {
	return func(s *Synthesizer) { s.policy = p }
}

// WithSampleSize caps the number of feedback items placed in the prompt.
func WithSampleSize(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

// NewSynthesizer creates a Synthesizer. Without WithGenerator every insight is deterministic.
func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		policy:     DefaultSeverityPolicy(),
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Synthesize returns one or more insights for the cluster. Generation problems fall back to
// the deterministic templates; only an empty cluster or a cancelled context is an error.
func (s *Synthesizer) Synthesize(ctx context.Context, in ClusterInput) ([]GeneratedInsight, error) {
	if len(in.Items) == 0 {
		return nil, huberrors.NewValidationError("items", "cluster has no feedback")
	}

	snap := takeSnapshot(in)
	names := customerNames(in.Customers)

	if len(in.Items) < minGeneratedItems || s.gen == nil {
		return []GeneratedInsight{s.finish(s.fallback(in, snap), in, names)}, nil
	}

	generated, err := s.generate(ctx, in, snap)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		slog.Warn("insight generation failed, using fallback",
			"label", in.Label,
			"malformed", isMalformed(err),
			"error", err,
		)

		return []GeneratedInsight{s.finish(s.fallback(in, snap), in, names)}, nil
	}

	for i := range generated {
		generated[i] = s.finish(generated[i], in, names)
	}

	return generated, nil
}

// finish strips customer names from the title and restores a usable title when nothing is left.
func (s *Synthesizer) finish(g GeneratedInsight, in ClusterInput, names []string) GeneratedInsight {
	title := SanitizeTitle(g.Title, names)
	if title == "" {
		title = SanitizeTitle(s.fallback(in, takeSnapshot(in)).Title, names)
	}
	if title == "" {
		title = untitled
	}
	g.Title = title

	return g
}

// generate runs the generation path. Any error means the caller should fall back.
func (s *Synthesizer) generate(ctx context.Context, in ClusterInput, snap snapshot) ([]GeneratedInsight, error) {
	sample := diverseSample(in.Items, s.sampleSize)

	res := llm.Try(ctx, s.gen, s.prompt(in, snap, sample))
	if !res.OK {
		if res.Err != nil {
			return nil, res.Err
		}

		return nil, huberrors.NewGenerationError("generation "+res.Reason, nil)
	}

	var doc document
	if err := json.Unmarshal([]byte(stripFences(res.Text)), &doc); err != nil {
		return nil, huberrors.NewMalformedOutputError("insight output is not valid JSON", err)
	}
	if len(doc.Insights) == 0 {
		return nil, huberrors.NewMalformedOutputError("insight output has no insights", nil)
	}

	out := make([]GeneratedInsight, 0, len(doc.Insights))
	for _, p := range doc.Insights {
		indices := mapQuotes(p.KeyQuotes, sample)

		title := strings.TrimSpace(p.Title)
		if title == "" {
			title = untitled
		}

		out = append(out, GeneratedInsight{
			Title:                 title,
			Description:           strings.TrimSpace(p.Description),
			Impact:                strings.TrimSpace(p.Impact),
			Recommendation:        strings.TrimSpace(p.Recommendation),
			Severity:              models.ParseSeverity(strings.ToLower(strings.TrimSpace(p.Severity))),
			Effort:                models.ParseEffort(strings.ToLower(strings.TrimSpace(p.Effort))),
			KeyQuoteIndices:       indices,
			SupportingFeedbackIDs: snap.feedbackIDs,
			AffectedCustomers:     snap.customers,
			KeyQuotes:             quotesAt(in.Items, indices),
			Generated:             true,
		})
	}

	slog.Debug("generated insights",
		"label", in.Label,
		"customers", len(snap.customerIDs),
		"items", len(in.Items),
		"sampled", len(sample),
	)

	return out, nil
}

func (s *Synthesizer) prompt(in ClusterInput, snap snapshot, sample []int) llm.Prompt {
	letters := make(map[uuid.UUID]string, len(snap.customerIDs))
	for i, cid := range snap.customerIDs {
		letters[cid] = customerCode(i)
	}

	affected := "Multiple users"
	if n := len(snap.customerIDs); n > 0 {
		affected = fmt.Sprintf("%d customer(s)", n)
	}

	var b strings.Builder
	b.WriteString("Analyze this cluster of customer feedback.\n\n")
	fmt.Fprintf(&b, "Theme: %s\nAffected: %s\n\nFeedback:\n", in.Label, affected)
	for n, idx := range sample {
		item := in.Items[idx]
		code := "?"
		if item.CustomerID != nil {
			code = letters[*item.CustomerID]
		}
		fmt.Fprintf(&b, "%d. [Customer %s] %s\n", n+1, code, truncate(item.Text, promptTextCap))
	}
	b.WriteString(`
Write 1 actionable insight that synthesizes this feedback:
- title: a business-focused statement of at most 6 words and under 45 characters. Never include customer, company or person names; the title must apply to any customer with this issue.
- description: the core issue or opportunity and what users experience.
- impact: why it matters and what is at stake, with business figures where possible.
- recommendation: 2-3 specific next steps naming what to investigate, who to talk to or what to build. Avoid generic advice.
- severity: low, medium, high or critical, from customer impact and business risk.
- effort: low, medium or high, as a realistic engineering estimate.
- key_quotes: up to 3 feedback numbers from the list above that best represent the insight.

Respond with JSON: {"insights": [{"title": "...", "description": "...", "impact": "...", "recommendation": "...", "severity": "...", "effort": "...", "key_quotes": [1]}]}`)

	return llm.Prompt{
		System:      synthesisSystem,
		User:        b.String(),
		MaxTokens:   synthesisTokens,
		Temperature: synthesisTemp,
		Schema:      document{},
		SchemaName:  schemaName,
	}
}

// diverseSample returns indices of at most n items: first one item per distinct customer in
// order of appearance, then the remaining items in order.
func diverseSample(items []models.FeedbackItem, n int) []int {
	sample := make([]int, 0, min(n, len(items)))
	taken := make([]bool, len(items))
	seen := make(map[uuid.UUID]struct{})

	for i, item := range items {
		if len(sample) == n {
			return sample
		}
		if item.CustomerID == nil {
			continue
		}
		if _, ok := seen[*item.CustomerID]; ok {
			continue
		}
		seen[*item.CustomerID] = struct{}{}
		sample = append(sample, i)
		taken[i] = true
	}

	for i := range items {
		if len(sample) == n {
			break
		}
		if !taken[i] {
			sample = append(sample, i)
		}
	}

	return sample
}

// mapQuotes converts 1-based positions in the sample to indices into the full item list.
// Out-of-range and repeated positions are dropped; the first sampled item is the default.
func mapQuotes(positions []int, sample []int) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, p := range positions {
		if p < 1 || p > len(sample) {
			continue
		}
		idx := sample[p-1]
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
		if len(out) == maxKeyQuotes {
			break
		}
	}

	if len(out) == 0 {
		out = []int{sample[0]}
	}

	return out
}

// customerCode maps 0, 1, ... 25 to A..Z and continues with AA, AB, ...
func customerCode(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}

	return customerCode(i/26-1) + customerCode(i%26)
}

func customerNames(customers map[uuid.UUID]models.Customer) []string {
	names := make([]string, 0, len(customers))
	for _, c := range customers {
		names = append(names, c.Name)
	}
	sort.Strings(names)

	return names
}

func isMalformed(err error) bool {
	var genErr *huberrors.GenerationError

	return errors.As(err, &genErr) && genErr.Malformed
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
