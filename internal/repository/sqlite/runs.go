package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
	"github.com/google/uuid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const runColumns = `id, status, trigger, started_at, finished_at, feedback_count, themes_created,
		       insights_created, noise_count, degraded, duration_ms, last_error`

// ClaimRun atomically starts a run. It fails with a ConflictError when another run is
// still marked running.
func (s *Store) ClaimRun(ctx context.Context, trigger models.RunTrigger) (models.ClusteringRun, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.ClusteringRun{}, fmt.Errorf("generate run id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clustering_runs (id, status, trigger, started_at) VALUES (?, ?, ?, ?)`,
		id, models.RunStatusRunning, trigger, formatTime(s.now()),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return models.ClusteringRun{}, huberrors.NewConflictError("a clustering run is already in progress")
		}

		return models.ClusteringRun{}, persistence("claim run", err)
	}

	return s.GetRun(ctx, id)
}

// CompleteRun stores the result of a finished run.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, res models.RunResult) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clustering_runs SET
			status = ?,
			finished_at = ?,
			feedback_count = ?,
			themes_created = ?,
			insights_created = ?,
			noise_count = ?,
			degraded = ?,
			duration_ms = ?,
			last_error = NULL
		WHERE id = ? AND status = 'running'`,
		res.Status(), formatTime(s.now()), res.FeedbackCount, res.ThemesCreated, res.InsightsCreated,
		res.NoiseCount, res.Degraded, res.Duration.Milliseconds(), id,
	)

	return finishRun("complete run", result, err)
}

// FailRun marks a run as failed with the given message.
func (s *Store) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clustering_runs SET status = ?, finished_at = ?, last_error = ?
		WHERE id = ? AND status = 'running'`,
		models.RunStatusFailed, formatTime(s.now()), message, id,
	)

	return finishRun("fail run", result, err)
}

func finishRun(op string, result sql.Result, err error) error {
	if err != nil {
		return persistence(op, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return persistence(op, err)
	}

	if n == 0 {
		return huberrors.NewNotFoundError("clustering_run", "no running run with this id")
	}

	return nil
}

// FailStaleRuns fails runs that have been running for longer than maxAge and returns how many
// were released.
func (s *Store) FailStaleRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := s.now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE clustering_runs SET status = ?, finished_at = ?, last_error = 'run abandoned'
		WHERE status = 'running' AND started_at < ?`,
		models.RunStatusFailed, formatTime(now), formatTime(now.Add(-maxAge)),
	)
	if err != nil {
		return 0, persistence("fail stale runs", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, persistence("fail stale runs", err)
	}

	return n, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (models.ClusteringRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM clustering_runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClusteringRun{}, huberrors.NewNotFoundError("clustering_run", "clustering run not found")
		}

		return models.ClusteringRun{}, persistence("get run", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.ClusteringRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM clustering_runs
		ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.ClusteringRun, error) {
	var (
		run        models.ClusteringRun
		startedAt  string
		finishedAt sql.NullString
		durationMS int64
	)

	err := row.Scan(
		&run.ID, &run.Status, &run.Trigger, &startedAt, &finishedAt, &run.FeedbackCount,
		&run.ThemesCreated, &run.InsightsCreated, &run.NoiseCount, &run.Degraded, &durationMS, &run.LastError,
	)
	if err != nil {
		return models.ClusteringRun{}, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return models.ClusteringRun{}, err
	}

	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return models.ClusteringRun{}, err
		}

		run.FinishedAt = &t
	}

	run.Duration = time.Duration(durationMS) * time.Millisecond

	return run, nil
}

func isConstraintViolation(err error) bool {
	var se *moderncsqlite.Error

	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
