package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/insights/internal/clustering"
	"github.com/formbricks/insights/internal/config"
	"github.com/formbricks/insights/internal/insights"
	"github.com/formbricks/insights/internal/labels"
	"github.com/formbricks/insights/internal/models"
	"github.com/formbricks/insights/internal/observability"
	"github.com/formbricks/insights/internal/pipeline"
	"github.com/formbricks/insights/internal/repository"
	"github.com/formbricks/insights/internal/repository/sqlite"
	"github.com/formbricks/insights/pkg/database"
)

// feedbackStore is what the commands need from either store driver.
type feedbackStore interface {
	pipeline.Store
	UpsertCustomers(ctx context.Context, customers []models.Customer) error
	UpsertFeedback(ctx context.Context, items []models.FeedbackItem) error
}

// runStore keeps the clustering run history.
type runStore interface {
	pipeline.RunRecorder
	FailStaleRuns(ctx context.Context, maxAge time.Duration) (int64, error)
	ListRuns(ctx context.Context, limit int) ([]models.ClusteringRun, error)
}

// App holds the wired components shared by the commands.
type App struct {
	cfg      *config.Config
	db       *pgxpool.Pool
	sqlite   *sqlite.Store
	store    feedbackStore
	runs     runStore
	pipeline *pipeline.Pipeline

	meter          *observability.MeterSetup
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// NewApp opens the store, sets up observability and builds the pipeline.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	if err := a.setupObservability(ctx); err != nil {
		return nil, err
	}

	if err := a.openStore(ctx); err != nil {
		a.Close(context.Background())

		return nil, err
	}

	p, err := a.buildPipeline(ctx)
	if err != nil {
		a.Close(context.Background())

		return nil, err
	}

	a.pipeline = p

	return a, nil
}

func (a *App) setupObservability(ctx context.Context) error {
	providerCfg := observability.ProviderConfig{
		ServiceName:     a.cfg.Observability.ServiceName,
		MetricsExporter: a.cfg.Observability.MetricsExporter,
		TracesExporter:  a.cfg.Observability.TracesExporter,

		TraceSampleRatio: a.cfg.Observability.TraceSampleRatio,
	}

	meter, err := observability.NewMeterProvider(ctx, providerCfg)
	if err != nil {
		return fmt.Errorf("create meter provider: %w", err)
	}

	if meter == nil {
		slog.Debug("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		a.meter = meter

		a.metrics, err = observability.NewMetrics(meter.Meter)
		if err != nil {
			a.Close(context.Background())

			return fmt.Errorf("create metrics: %w", err)
		}

		if mp, ok := meter.Provider.(metric.MeterProvider); ok {
			otel.SetMeterProvider(mp)
		}
	}

	tp, err := observability.NewTracerProvider(ctx, providerCfg)
	if err != nil {
		a.Close(context.Background())

		return fmt.Errorf("create tracer provider: %w", err)
	}

	if tp != nil {
		a.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	return nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}

		a.sqlite = s
		a.store = s
		a.runs = s
	default:
		db, err := database.NewPostgresPool(ctx, a.cfg.DatabaseURL, database.WithPoolConfig(database.PoolConfig{
			MaxConns:        a.cfg.Database.MaxConns,
			MinConns:        a.cfg.Database.MinConns,
			MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  a.cfg.Database.ConnectTimeout,
		}))
		if err != nil {
			return err
		}

		a.db = db
		a.store = repository.NewStore(db)
		a.runs = repository.NewClusteringRunsRepository(db)
	}

	return nil
}

func (a *App) buildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg := a.cfg

	gen, err := newGenerator(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg.Embedding, a.metrics.EmbeddingsOrNil())
	if err != nil {
		return nil, err
	}

	var clusterer clustering.Clusterer

	switch cfg.Clustering.Algorithm {
	case "kmeans":
		slog.Warn("density clustering disabled, using k-means (degraded mode)")

		clusterer = clustering.NewKMeansClusterer()
	default:
		clusterer, err = clustering.NewDensityClusterer(cfg.DensitySettings())
		if err != nil {
			return nil, err
		}
	}

	labeler := labels.NewLabeler(
		labels.NewGenerator(labels.WithSampleSize(cfg.Clustering.LabelSampleSize)),
		labels.NewRefiner(gen),
	)

	clusters, err := clustering.NewService(clusterer, labeler, clustering.ServiceConfig{
		MinFeedbackCount: cfg.Clustering.MinFeedbackCount,
	})
	if err != nil {
		return nil, err
	}

	synthesizer := insights.NewSynthesizer(
		insights.WithGenerator(gen),
		insights.WithSeverityPolicy(cfg.SeverityPolicy()),
		insights.WithSampleSize(cfg.Insights.SampleSize),
	)

	opts := []pipeline.Option{
		pipeline.WithRunRecorder(a.runs),
		pipeline.WithMetrics(a.metrics),
	}
	if embedder != nil {
		opts = append(opts, pipeline.WithEmbedder(embedder))
	}

	return pipeline.New(a.store, clusters, synthesizer, pipeline.Config{
		Scoring:              cfg.ScoringSettings(),
		DupSimilarityEnabled: cfg.Scoring.DupSimilarityEnabled,
		DedupThreshold:       cfg.Insights.DedupTitleThreshold,
		EmbeddingBatchSize:   cfg.Embedding.BatchSize,
		SynthesisConcurrency: cfg.Insights.SynthesisConcurrency,
	}, opts...)
}

// requirePostgres fails commands that need the job queue.
func (a *App) requirePostgres(command string) error {
	if a.db == nil {
		return fmt.Errorf("%s needs STORE_DRIVER=postgres (the job queue lives in Postgres)", command)
	}

	return nil
}

// Close releases the store and flushes telemetry. Errors are logged.
func (a *App) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.db != nil {
		a.db.Close()
	}

	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			slog.Error("close sqlite store", "error", err)
		}
	}

	if err := errors.Join(
		observability.ShutdownTracerProvider(ctx, a.tracerProvider),
		observability.ShutdownMeterProvider(ctx, a.meter),
	); err != nil {
		slog.Error("shutdown observability", "error", err)
	}
}
