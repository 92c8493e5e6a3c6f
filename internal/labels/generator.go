// Package labels derives short human-readable theme labels from clustered feedback.
//
// Labels are built from tf-idf keyphrases with diversity selection. Company names, personal
// names, numbers and filler words are filtered before anything reaches a label, and the
// optional refinement step is checked against the same filtered vocabulary.
package labels

import (
	"strings"
)

// Fallback labels.
const (
	LabelFeatureRequest = "Feature Request"
	LabelUnlabeled      = "Unlabeled Theme"
)

// Label is a keyword label with the vocabulary that produced it.
type Label struct {
	Text     string
	Keywords []string
	// Blocked holds every name-like word seen in the texts. Refinement must not emit them.
	Blocked []string
}

// Generator extracts keyword labels.
type Generator struct {
	sampleSize int
	topN       int
	labelTop   int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSampleSize bounds how many texts feed extraction.
func WithSampleSize(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.sampleSize = n
		}
	}
}

// NewGenerator creates a Generator that samples the first 20 texts.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{sampleSize: 20, topN: defaultTopN, labelTop: defaultLabelTop}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Label builds the keyword label of one cluster. corpus may be nil.
func (g *Generator) Label(texts []string, corpus *Corpus) Label {
	if len(texts) > g.sampleSize {
		texts = texts[:g.sampleSize]
	}

	names := nameTokens(texts)
	for _, w := range corpus.Blocked() {
		names[w] = struct{}{}
	}

	label := Label{Blocked: sortedKeys(names)}

	keywords := extract(texts, corpus, g.topN)
	if len(keywords) == 0 {
		label.Text = LabelUnlabeled

		return label
	}

	label.Keywords = filterKeywords(keywords, func(w string) bool {
		_, ok := names[w]

		return ok
	})

	if len(label.Keywords) == 0 {
		label.Text = LabelFeatureRequest

		return label
	}

	top := label.Keywords
	if len(top) > g.labelTop {
		top = top[:g.labelTop]
	}

	label.Text = strings.Join(top, ", ")

	return label
}
