// Package pipeline runs the clustering, synthesis and scoring stages as one batch and
// replaces the derived tables with the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/formbricks/insights/internal/clustering"
	"github.com/formbricks/insights/internal/embeddings"
	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/insights"
	"github.com/formbricks/insights/internal/metrics"
	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/observability"
	"github.com/formbricks/insights/internal/scoring"
)

// Store is the storage collaborator. ReplaceDerived and ReplaceMetrics must be atomic.
type Store interface {
	LoadSnapshot(ctx context.Context, includeUnembedded bool) (models.Snapshot, error)
	SaveEmbeddings(ctx context.Context, ids []uuid.UUID, vectors [][]float32) error
	ReplaceDerived(ctx context.Context, state models.DerivedState) error
	LoadThemeMembership(ctx context.Context) (models.ThemeMembership, error)
	ReplaceMetrics(ctx context.Context, metrics []models.ThemeMetrics) error
}

// RunRecorder claims and finishes clustering run records.
type RunRecorder interface {
	ClaimRun(ctx context.Context, trigger models.RunTrigger) (models.ClusteringRun, error)
	CompleteRun(ctx context.Context, id uuid.UUID, res models.RunResult) error
	FailRun(ctx context.Context, id uuid.UUID, message string) error
}

// ClusterService clusters a batch and labels the clusters.
type ClusterService interface {
	Cluster(ctx context.Context, vectors [][]float32, texts []string, blockedNames []string) (clustering.Output, error)
}

// Synthesizer turns one cluster into insights.
type Synthesizer interface {
	Synthesize(ctx context.Context, in insights.ClusterInput) ([]insights.GeneratedInsight, error)
}

// Config holds the numeric knobs of a run.
type Config struct {
	Scoring              scoring.Config
	DupSimilarityEnabled bool
	DedupThreshold       float64
	EmbeddingBatchSize   int
	SynthesisConcurrency int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Scoring:              scoring.DefaultConfig(),
		DedupThreshold:       insights.DefaultDedupThreshold,
		EmbeddingBatchSize:   32,
		SynthesisConcurrency: 4,
	}
}

// Validate fails fast on knobs that would make a run meaningless.
func (c Config) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	if c.DedupThreshold <= 0 || c.DedupThreshold > 1 {
		return huberrors.NewConfigurationError("DEDUP_TITLE_THRESHOLD", "must be in (0, 1]")
	}

	if c.EmbeddingBatchSize <= 0 {
		return huberrors.NewConfigurationError("EMBEDDING_BATCH_SIZE", "must be positive")
	}

	if c.SynthesisConcurrency <= 0 {
		return huberrors.NewConfigurationError("SYNTHESIS_CONCURRENCY", "must be positive")
	}

	return nil
}

// Pipeline is the batch job. Collaborators are injected; there is no package state.
type Pipeline struct {
	store        Store
	runs         RunRecorder
	clusters     ClusterService
	synthesizer  Synthesizer
	calculator   *metrics.Calculator
	embedder     embeddings.Client
	metrics      observability.PipelineMetrics
	embedMetrics observability.EmbeddingMetrics
	cfg          Config
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRunRecorder records every run and uses the recorder's claim to reject concurrent runs.
func WithRunRecorder(r RunRecorder) Option {
	return func(p *Pipeline) {
		p.runs = r
	}
}

// WithEmbedder embeds feedback that has no vector yet before clustering.
func WithEmbedder(c embeddings.Client) Option {
	return func(p *Pipeline) {
		p.embedder = c
	}
}

// WithCalculator replaces the default metrics calculator.
func WithCalculator(c *metrics.Calculator) Option {
	return func(p *Pipeline) {
		p.calculator = c
	}
}

// WithMetrics records run, stage and embedding metrics. A nil value disables them.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m.PipelineOrNil()
		p.embedMetrics = m.EmbeddingsOrNil()
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New wires a Pipeline and validates cfg.
func New(store Store, clusters ClusterService, synthesizer Synthesizer, cfg Config, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, huberrors.NewConfigurationError("STORE_DRIVER", "a store is required")
	}

	if clusters == nil {
		return nil, huberrors.NewConfigurationError("CLUSTERING_ALGORITHM", "a cluster service is required")
	}

	if synthesizer == nil {
		return nil, huberrors.NewConfigurationError("LLM_PROVIDER", "a synthesizer is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		clusters:    clusters,
		synthesizer: synthesizer,
		calculator:  metrics.NewCalculator(),
		cfg:         cfg,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Run executes one full recomputation. Insufficient data is reported through
// RunResult.Skipped and writes nothing: themes and insights from the last completed run stay
// visible until a run with enough feedback replaces them. Persistence failures leave the
// previous derived state intact and are returned. When a RunRecorder is set, a run already in flight yields huberrors.ErrConflict.
func (p *Pipeline) Run(ctx context.Context, trigger models.RunTrigger) (res models.RunResult, err error) {
	start := p.now()

	ctx, span := observability.StartSpan(ctx, "Run", attribute.String(observability.AttrTrigger, string(trigger)))
	defer func() { observability.EndSpan(span, err) }()

	if p.runs != nil {
		run, claimErr := p.runs.ClaimRun(ctx, trigger)
		if claimErr != nil {
			if errors.Is(claimErr, huberrors.ErrConflict) {
				p.recordRun(ctx, trigger, "conflict", 0)
			}

			return models.RunResult{}, claimErr
		}

		res.RunID = run.ID
		ctx = observability.WithRunID(ctx, run.ID)
	}

	slog.InfoContext(ctx, "clustering run started", "trigger", trigger)

	out, err := p.execute(ctx, start)
	out.RunID = res.RunID
	out.Duration = p.now().Sub(start)

	// The run record is finished even when ctx was cancelled mid-run.
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		slog.ErrorContext(ctx, "clustering run failed", "error", err, "duration", out.Duration)
		p.recordRun(ctx, trigger, string(models.RunStatusFailed), out.Duration)

		if p.runs != nil {
			if failErr := p.runs.FailRun(finishCtx, res.RunID, err.Error()); failErr != nil {
				slog.ErrorContext(ctx, "failed to mark run as failed", "error", failErr)
			}
		}

		return out, err
	}

	if p.runs != nil {
		if completeErr := p.runs.CompleteRun(finishCtx, res.RunID, out); completeErr != nil {
			return out, fmt.Errorf("complete run: %w", completeErr)
		}
	}

	p.recordRun(ctx, trigger, string(out.Status()), out.Duration)

	slog.InfoContext(ctx, "clustering run finished",
		"status", out.Status(),
		"feedback", out.FeedbackCount,
		"themes", out.ThemesCreated,
		"insights", out.InsightsCreated,
		"noise", out.NoiseCount,
		"degraded", out.Degraded,
		"duration", out.Duration,
	)

	return out, nil
}

func (p *Pipeline) execute(ctx context.Context, now time.Time) (models.RunResult, error) {
	var (
		res  models.RunResult
		snap models.Snapshot
	)

	err := p.stage(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		snap, err = p.store.LoadSnapshot(ctx, p.embedder != nil)

		return err
	})
	if err != nil {
		return res, err
	}

	if p.embedder != nil && len(snap.Unembedded) > 0 {
		err = p.stage(ctx, "embed", func(ctx context.Context) error {
			embedded, err := p.embedMissing(ctx, snap.Unembedded)
			snap.Feedback = mergeFeedback(snap.Feedback, embedded)

			return err
		})
		if err != nil {
			return res, err
		}
	}

	res.FeedbackCount = len(snap.Feedback)

	vectors := make([][]float32, len(snap.Feedback))
	texts := make([]string, len(snap.Feedback))

	for i, item := range snap.Feedback {
		vectors[i] = item.Embedding
		texts[i] = item.Text
	}

	var out clustering.Output

	err = p.stage(ctx, "cluster", func(ctx context.Context) error {
		var err error
		out, err = p.clusters.Cluster(ctx, vectors, texts, customerNames(snap.Customers))

		return err
	})
	if err != nil {
		return res, fmt.Errorf("cluster feedback: %w", err)
	}

	if out.ShortCircuited {
		res.Skipped = true
		res.SkipReason = huberrors.NewInsufficientDataError(res.FeedbackCount, out.MinFeedbackCount).Error()

		return res, nil
	}

	res.NoiseCount = out.NoiseCount
	res.Degraded = out.Degraded

	batch := newBatch(out, snap, now)

	var generated [][]insights.GeneratedInsight

	err = p.stage(ctx, "synthesis", func(ctx context.Context) error {
		var err error
		generated, err = p.synthesize(ctx, batch, snap.Customers)

		return err
	})
	if err != nil {
		return res, err
	}

	drafts := make([]insights.Draft, 0, len(batch.themes))
	for i, gs := range generated {
		themeID := batch.themes[i].ID
		for _, g := range gs {
			drafts = append(drafts, insights.NewDraft(g, &themeID, batch.items[i], now))
		}
	}

	drafts, dedup := insights.Deduplicate(drafts, p.cfg.DedupThreshold)
	if dedup.Merged > 0 {
		slog.InfoContext(ctx, "merged duplicate insights",
			"merged", dedup.Merged,
			"links_moved", dedup.LinksMoved,
			"links_dropped", dedup.LinksDropped,
		)
	}

	var themeMetrics []models.ThemeMetrics

	err = p.stage(ctx, "metrics", func(ctx context.Context) error {
		themeMetrics = p.score(ctx, batch.themes, batch.items, snap.Customers, now)

		return nil
	})
	if err != nil {
		return res, err
	}

	state := models.DerivedState{
		Themes:         batch.themes,
		FeedbackThemes: batch.links,
		Metrics:        themeMetrics,
	}

	for _, d := range drafts {
		state.Insights = append(state.Insights, d.Insight)
		state.InsightFeedback = append(state.InsightFeedback, d.Links...)
	}

	err = p.stage(ctx, "persist", func(ctx context.Context) error {
		return p.store.ReplaceDerived(ctx, state)
	})
	if err != nil {
		return res, err
	}

	res.ThemesCreated = len(state.Themes)
	res.InsightsCreated = len(state.Insights)

	if p.metrics != nil {
		p.metrics.RecordRunCounts(ctx, observability.RunCounts{
			Themes:   res.ThemesCreated,
			Insights: res.InsightsCreated,
			Noise:    res.NoiseCount,
			Merged:   dedup.Merged,
		})
		p.metrics.SetActiveThemes(int64(res.ThemesCreated))
	}

	return res, nil
}

// Rescore recomputes ThemeMetrics for the current themes without reclustering.
func (p *Pipeline) Rescore(ctx context.Context) (n int, err error) {
	ctx, span := observability.StartSpan(ctx, "Rescore")
	defer func() { observability.EndSpan(span, err) }()

	membership, err := p.store.LoadThemeMembership(ctx)
	if err != nil {
		return 0, err
	}

	items := make([][]models.FeedbackItem, len(membership.Themes))
	for i, t := range membership.Themes {
		items[i] = membership.Members[t.ID]
	}

	rows := p.score(ctx, membership.Themes, items, membership.Customers, p.now())

	if err := p.store.ReplaceMetrics(ctx, rows); err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "themes rescored", "themes", len(rows))

	return len(rows), nil
}

// stage times fn and wraps it in a span.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, name)
	start := time.Now()

	err := fn(ctx)

	if p.metrics != nil {
		p.metrics.RecordStage(ctx, name, time.Since(start))
	}

	observability.EndSpan(span, err)

	return err
}

func (p *Pipeline) recordRun(ctx context.Context, trigger models.RunTrigger, status string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordRun(ctx, string(trigger), status, d)
	}
}

func customerNames(customers map[uuid.UUID]models.Customer) []string {
	names := make([]string, 0, len(customers))
	for _, c := range customers {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}

	slices.Sort(names)

	return names
}
