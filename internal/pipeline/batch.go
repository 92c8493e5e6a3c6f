package pipeline

import (
	"bytes"
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/formbricks/insights/internal/clustering"
	"github.com/formbricks/insights/internal/embeddings"
	"github.com/formbricks/insights/internal/insights"
	"github.com/formbricks/insights/internal/metrics"
	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/scoring"
	vectors "github.com/formbricks/insights/pkg/embeddings"
)

// batch is the theme set of one run. items and themes are parallel.
type batch struct {
	themes []models.Theme
	items  [][]models.FeedbackItem
	links  []models.FeedbackTheme
}

func newBatch(out clustering.Output, snap models.Snapshot, now time.Time) batch {
	version := now.UTC().Format(time.RFC3339Nano)

	b := batch{
		themes: make([]models.Theme, 0, len(out.Clusters)),
		items:  make([][]models.FeedbackItem, 0, len(out.Clusters)),
	}

	for _, c := range out.Clusters {
		theme := models.Theme{
			ID:          uuid.Must(uuid.NewV7()),
			Label:       c.Label,
			Description: c.Description,
			Centroid:    c.Centroid,
			Version:     version,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		members := make([]models.FeedbackItem, len(c.MemberIndices))
		for j, idx := range c.MemberIndices {
			members[j] = snap.Feedback[idx]
			b.links = append(b.links, models.FeedbackTheme{
				FeedbackID: snap.Feedback[idx].ID,
				ThemeID:    theme.ID,
				Confidence: c.Confidences[j],
			})
		}

		b.themes = append(b.themes, theme)
		b.items = append(b.items, members)
	}

	return b
}

// synthesize runs the synthesizer per theme on a bounded pool. A failing theme is logged
// and left without insights; only cancellation stops the stage.
func (p *Pipeline) synthesize(
	ctx context.Context,
	b batch,
	customers map[uuid.UUID]models.Customer,
) ([][]insights.GeneratedInsight, error) {
	out := make([][]insights.GeneratedInsight, len(b.themes))

	var g errgroup.Group
	g.SetLimit(p.cfg.SynthesisConcurrency)

	for i := range b.themes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			generated, err := p.synthesizer.Synthesize(ctx, insights.ClusterInput{
				Label:     b.themes[i].Label,
				Items:     b.items[i],
				Customers: customers,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				slog.WarnContext(ctx, "insight synthesis failed, theme left without insights",
					"cluster", i,
					"label", b.themes[i].Label,
					"error", err,
				)

				return nil
			}

			out[i] = generated

			if p.metrics != nil {
				for _, gi := range generated {
					outcome := "fallback"
					if gi.Generated {
						outcome = "generated"
					}

					p.metrics.RecordGeneration(ctx, "insight", outcome)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// embedMissing embeds, normalizes and stores vectors for items. Failed batches are skipped.
func (p *Pipeline) embedMissing(ctx context.Context, items []models.FeedbackItem) ([]models.FeedbackItem, error) {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.Text
	}

	embedded := make([]models.FeedbackItem, 0, len(items))
	started := time.Now()

	onBatch := func(offset int, vecs [][]float32) error {
		p.recordEmbedding(ctx, "success", len(vecs), time.Since(started))

		ids := make([]uuid.UUID, len(vecs))
		normalized := make([][]float32, len(vecs))

		for j, v := range vecs {
			ids[j] = items[offset+j].ID
			normalized[j] = vectors.Normalized(v)
		}

		if err := p.store.SaveEmbeddings(ctx, ids, normalized); err != nil {
			return err
		}

		for j, v := range normalized {
			item := items[offset+j]
			item.Embedding = v
			embedded = append(embedded, item)
		}

		started = time.Now()

		return nil
	}

	onError := func(offset int, err error) {
		size := min(p.cfg.EmbeddingBatchSize, len(items)-offset)
		p.recordEmbedding(ctx, "failed", size, time.Since(started))

		slog.WarnContext(ctx, "embedding batch failed, items skipped",
			"offset", offset,
			"size", size,
			"error", err,
		)

		started = time.Now()
	}

	n, err := embeddings.Batch(ctx, p.embedder, texts, p.cfg.EmbeddingBatchSize, onBatch, onError)

	slog.InfoContext(ctx, "embedded missing feedback", "embedded", n, "pending", len(items))

	return embedded, err
}

func (p *Pipeline) recordEmbedding(ctx context.Context, status string, texts int, d time.Duration) {
	if p.embedMetrics == nil {
		return
	}

	p.embedMetrics.RecordBatch(ctx, status, texts)
	p.embedMetrics.RecordDuration(ctx, d, status)
}

// mergeFeedback restores the snapshot order (created_at, id) after newly embedded items are added.
func mergeFeedback(existing, embedded []models.FeedbackItem) []models.FeedbackItem {
	if len(embedded) == 0 {
		return existing
	}

	out := append(slices.Clip(existing), embedded...)
	slices.SortStableFunc(out, func(a, b models.FeedbackItem) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), bytes.Compare(a.ID[:], b.ID[:]))
	})

	return out
}

// score computes metrics and the final score for every theme.
func (p *Pipeline) score(
	ctx context.Context,
	themes []models.Theme,
	items [][]models.FeedbackItem,
	customers map[uuid.UUID]models.Customer,
	now time.Time,
) []models.ThemeMetrics {
	result := p.calculator.Calculate(now, items, customers)

	similarity := make([]float64, len(themes))
	if p.cfg.DupSimilarityEnabled {
		similarity = similarityToHigher(result, themes, p.cfg.Scoring)
	}

	rows := make([]models.ThemeMetrics, len(themes))

	for i, t := range themes {
		components := scoring.CalculateThemeScore(result.ScoreInputs(i, similarity[i]), p.cfg.Scoring)
		stats := result.Themes[i]

		slog.DebugContext(ctx, "theme scored", "theme_id", t.ID, "label", t.Label, "score", components)

		rows[i] = models.ThemeMetrics{
			ThemeID:    t.ID,
			Freq30d:    stats.Freq30d,
			Freq90d:    stats.Freq90d,
			ACVSum:     stats.ACVSum,
			Sentiment:  stats.Sentiment,
			Trend:      components.TrendSlope,
			DupPenalty: components.DupPenalty,
			Score:      components.FinalScore,
			UpdatedAt:  now,
		}
	}

	return rows
}

// similarityToHigher ranks themes by their score without the duplicate term and returns, per
// theme, the highest centroid cosine similarity to any theme ranked above it.
func similarityToHigher(result metrics.Result, themes []models.Theme, cfg scoring.Config) []float64 {
	base := make([]float64, len(themes))
	order := make([]int, len(themes))

	for i := range themes {
		base[i] = scoring.CalculateThemeScore(result.ScoreInputs(i, 0), cfg).FinalScore
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(base[b], base[a])
	})

	out := make([]float64, len(themes))

	for rank, i := range order {
		for _, j := range order[:rank] {
			out[i] = max(out[i], vectors.Cosine(themes[i].Centroid, themes[j].Centroid))
		}
	}

	return out
}
