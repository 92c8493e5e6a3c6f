package labels

import (
	"context"
)

// Result is the final label of a cluster.
type Result struct {
	// Label is the refined title, or the keyword label when refinement is off.
	Label string
	// Keywords is the keyword label the title was derived from.
	Keywords string
	Refined  bool
}

// Labeler combines keyword extraction with optional refinement.
type Labeler struct {
	gen     *Generator
	refiner *Refiner
}

// NewLabeler creates a Labeler. A nil refiner keeps the keyword label as is.
func NewLabeler(gen *Generator, refiner *Refiner) *Labeler {
	if gen == nil {
		gen = NewGenerator()
	}

	return &Labeler{gen: gen, refiner: refiner}
}

// Label labels one cluster's texts.
func (l *Labeler) Label(ctx context.Context, texts []string, corpus *Corpus) Result {
	kw := l.gen.Label(texts, corpus)
	res := Result{Label: kw.Text, Keywords: kw.Text}

	if l.refiner == nil {
		return res
	}

	res.Label, res.Refined = l.refiner.Refine(ctx, kw, texts)

	return res
}
