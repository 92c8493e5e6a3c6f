package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const runColumns = `id, status, trigger, started_at, finished_at, feedback_count, themes_created,
		       insights_created, noise_count, degraded, duration_ms, last_error`

// ClusteringRunsRepository records pipeline runs and guards against concurrent ones.
type ClusteringRunsRepository struct {
	db  DB
	now func() time.Time
}

// NewClusteringRunsRepository creates a new clustering runs repository.
func NewClusteringRunsRepository(db DB) *ClusteringRunsRepository {
	return &ClusteringRunsRepository{db: db, now: time.Now}
}

// ClaimRun atomically starts a run. It fails with a ConflictError when another run is
// still marked running.
func (r *ClusteringRunsRepository) ClaimRun(ctx context.Context, trigger models.RunTrigger) (models.ClusteringRun, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.ClusteringRun{}, fmt.Errorf("generate run id: %w", err)
	}

	query := `
		INSERT INTO clustering_runs (id, status, trigger, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + runColumns

	run, err := scanRun(r.db.QueryRow(ctx, query, id, models.RunStatusRunning, trigger, r.now().UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return models.ClusteringRun{}, huberrors.NewConflictError("a clustering run is already in progress")
		}

		return models.ClusteringRun{}, persistence("claim run", err)
	}

	return run, nil
}

// CompleteRun stores the result of a finished run.
func (r *ClusteringRunsRepository) CompleteRun(ctx context.Context, id uuid.UUID, res models.RunResult) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clustering_runs SET
			status = $2,
			finished_at = $3,
			feedback_count = $4,
			themes_created = $5,
			insights_created = $6,
			noise_count = $7,
			degraded = $8,
			duration_ms = $9,
			last_error = NULL
		WHERE id = $1 AND status = 'running'`,
		id, res.Status(), r.now().UTC(), res.FeedbackCount, res.ThemesCreated, res.InsightsCreated,
		res.NoiseCount, res.Degraded, res.Duration.Milliseconds(),
	)
	if err != nil {
		return persistence("complete run", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("clustering_run", "no running run with this id")
	}

	return nil
}

// FailRun marks a run as failed with the given message.
func (r *ClusteringRunsRepository) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE clustering_runs SET
			status = $2,
			finished_at = $3,
			last_error = $4
		WHERE id = $1 AND status = 'running'`,
		id, models.RunStatusFailed, r.now().UTC(), message,
	)
	if err != nil {
		return persistence("fail run", err)
	}

	if tag.RowsAffected() == 0 {
		return huberrors.NewNotFoundError("clustering_run", "no running run with this id")
	}

	return nil
}

// FailStaleRuns fails runs that have been running for longer than maxAge, releasing the
// claim held by a crashed process. It returns the number of runs released.
func (r *ClusteringRunsRepository) FailStaleRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := r.now().UTC()

	tag, err := r.db.Exec(ctx, `
		UPDATE clustering_runs SET
			status = $1,
			finished_at = $2,
			last_error = 'run abandoned'
		WHERE status = 'running' AND started_at < $3`,
		models.RunStatusFailed, now, now.Add(-maxAge),
	)
	if err != nil {
		return 0, persistence("fail stale runs", err)
	}

	return tag.RowsAffected(), nil
}

// GetRun retrieves a run by id.
func (r *ClusteringRunsRepository) GetRun(ctx context.Context, id uuid.UUID) (models.ClusteringRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM clustering_runs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ClusteringRun{}, huberrors.NewNotFoundError("clustering_run", "clustering run not found")
		}

		return models.ClusteringRun{}, persistence("get run", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (r *ClusteringRunsRepository) ListRuns(ctx context.Context, limit int) ([]models.ClusteringRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+runColumns+`
		FROM clustering_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, persistence("list runs", err)
	}
	defer rows.Close()

	runs := []models.ClusteringRun{}

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, persistence("scan run", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence("iterate runs", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (models.ClusteringRun, error) {
	var (
		run        models.ClusteringRun
		durationMS int64
	)

	err := row.Scan(
		&run.ID, &run.Status, &run.Trigger, &run.StartedAt, &run.FinishedAt, &run.FeedbackCount,
		&run.ThemesCreated, &run.InsightsCreated, &run.NoiseCount, &run.Degraded, &durationMS, &run.LastError,
	)
	if err != nil {
		return models.ClusteringRun{}, err
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}
