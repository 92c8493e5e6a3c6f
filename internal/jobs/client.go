package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/formbricks/insights/internal/observability"
)

// ClientConfig configures the River client that executes clustering runs.
type ClientConfig struct {
	// Workers is the number of concurrent clustering jobs per process. Runs are serialized by the
	// run claim in the database, so more than one only helps to drain conflicts faster.
	Workers int
	// MaxAttempts is the default attempt budget for inserted jobs.
	MaxAttempts int
}

// NewClient builds a River client with the clustering run worker registered on QueueName.
func NewClient(
	db *pgxpool.Pool,
	worker *ClusteringRunWorker,
	cfg ClientConfig,
	metrics observability.JobMetrics,
) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, worker); err != nil {
		return nil, fmt.Errorf("register clustering run worker: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: max(cfg.Workers, 1)},
		},
		Workers:      workers,
		MaxAttempts:  cfg.MaxAttempts,
		ErrorHandler: NewErrorHandler(metrics),
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// NewInsertOnlyClient builds a River client that can insert jobs but does not work them.
func NewInsertOnlyClient(db *pgxpool.Pool) (*river.Client[pgx.Tx], error) {
	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	return client, nil
}

// Migrate brings River's own tables up to date.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create River migrator: %w", err)
	}

	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("migrate River tables: %w", err)
	}

	return nil
}
