package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/formbricks/insights/internal/models"
)

type fakeRunner struct {
	res      models.RunResult
	err      error
	triggers []models.RunTrigger
}

func (f *fakeRunner) Run(_ context.Context, trigger models.RunTrigger) (models.RunResult, error) {
	f.triggers = append(f.triggers, trigger)

	return f.res, f.err
}

type fakeJobMetrics struct {
	enqueued []string
	outcomes []string
	ticks    int
	skips    int
}

func (f *fakeJobMetrics) RecordEnqueued(_ context.Context, trigger string) {
	f.enqueued = append(f.enqueued, trigger)
}

func (f *fakeJobMetrics) RecordOutcome(_ context.Context, outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeJobMetrics) RecordSchedulerTick(context.Context) { f.ticks++ }

func (f *fakeJobMetrics) RecordLockSkip(context.Context) { f.skips++ }

type fakeInserter struct {
	args      []river.JobArgs
	opts      []*river.InsertOpts
	duplicate bool
	err       error
}

func (f *fakeInserter) Insert(_ context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.args = append(f.args, args)
	f.opts = append(f.opts, opts)

	return &rivertype.JobInsertResult{
		Job:                      &rivertype.JobRow{ID: int64(len(f.args))},
		UniqueSkippedAsDuplicate: f.duplicate,
	}, nil
}

func newJob(trigger models.RunTrigger, attempt, maxAttempts int) *river.Job[ClusteringRunArgs] {
	return &river.Job[ClusteringRunArgs]{
		JobRow: &rivertype.JobRow{ID: 42, Attempt: attempt, MaxAttempts: maxAttempts},
		Args:   ClusteringRunArgs{Trigger: trigger},
	}
}

func TestClusteringRunArgs_Kind(t *testing.T) {
	assert.Equal(t, "clustering_run", ClusteringRunArgs{}.Kind())
}

func TestClusteringRunWorker_Work(t *testing.T) {
	runID := uuid.Must(uuid.NewV7())

	tests := []struct {
		name        string
		res         models.RunResult
		err         error
		attempt     int
		wantErr     error
		wantOutcome string
	}{
		{
			name:        "completed run",
			res:         models.RunResult{RunID: runID, ThemesCreated: 2, InsightsCreated: 3},
			attempt:     1,
			wantOutcome: "completed",
		},
		{
			name:        "skipped run is not an error",
			res:         models.RunResult{RunID: runID, Skipped: true, SkipReason: "insufficient data: have 3, need 20"},
			attempt:     1,
			wantOutcome: "skipped",
		},
		{
			name:        "conflict cancels",
			err:         huberrors.NewConflictError("run in progress"),
			attempt:     1,
			wantErr:     huberrors.ErrConflict,
			wantOutcome: "conflict",
		},
		{
			name:        "configuration error cancels",
			err:         huberrors.NewConfigurationError("EMBEDDING_DIMENSIONS", "mismatch"),
			attempt:     1,
			wantErr:     huberrors.ErrConfiguration,
			wantOutcome: "failed",
		},
		{
			name:        "persistence error retries",
			err:         huberrors.NewPersistenceError("replace derived", errors.New("connection reset")),
			attempt:     1,
			wantErr:     huberrors.ErrPersistence,
			wantOutcome: "retry",
		},
		{
			name:        "last attempt fails",
			err:         huberrors.NewPersistenceError("replace derived", errors.New("connection reset")),
			attempt:     3,
			wantErr:     huberrors.ErrPersistence,
			wantOutcome: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{res: tt.res, err: tt.err}
			metrics := &fakeJobMetrics{}
			worker := NewClusteringRunWorker(runner, 0, metrics)

			err := worker.Work(context.Background(), newJob(models.TriggerSchedule, tt.attempt, 3))

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}

			assert.Equal(t, []models.RunTrigger{models.TriggerSchedule}, runner.triggers)
			assert.Equal(t, []string{tt.wantOutcome}, metrics.outcomes)
		})
	}
}

func TestClusteringRunWorker_Work_defaultsTriggerToManual(t *testing.T) {
	runner := &fakeRunner{}
	worker := NewClusteringRunWorker(runner, 0, nil)

	require.NoError(t, worker.Work(context.Background(), newJob("", 1, 3)))
	assert.Equal(t, []models.RunTrigger{models.TriggerManual}, runner.triggers)
}

func TestClusteringRunWorker_Timeout(t *testing.T) {
	assert.Equal(t, DefaultRunTimeout, NewClusteringRunWorker(&fakeRunner{}, 0, nil).Timeout(nil))
	assert.Equal(t, 5*time.Minute, NewClusteringRunWorker(&fakeRunner{}, 5*time.Minute, nil).Timeout(nil))
}

func TestRunEnqueuer_Enqueue(t *testing.T) {
	inserter := &fakeInserter{}
	metrics := &fakeJobMetrics{}
	enqueuer := NewRunEnqueuer(inserter, 3, metrics)

	inserted, err := enqueuer.Enqueue(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	assert.True(t, inserted)

	require.Len(t, inserter.args, 1)
	assert.Equal(t, ClusteringRunArgs{Trigger: models.TriggerManual}, inserter.args[0])
	assert.Equal(t, QueueName, inserter.opts[0].Queue)
	assert.Equal(t, 3, inserter.opts[0].MaxAttempts)
	assert.False(t, inserter.opts[0].UniqueOpts.ByArgs)
	assert.Contains(t, inserter.opts[0].UniqueOpts.ByState, rivertype.JobStateRunning)
	assert.Equal(t, []string{"manual"}, metrics.enqueued)
}

func TestRunEnqueuer_Enqueue_duplicate(t *testing.T) {
	inserter := &fakeInserter{duplicate: true}
	metrics := &fakeJobMetrics{}

	inserted, err := NewRunEnqueuer(inserter, 3, metrics).Enqueue(context.Background(), models.TriggerSchedule)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Empty(t, metrics.enqueued)
}

func TestRunEnqueuer_Enqueue_error(t *testing.T) {
	inserter := &fakeInserter{err: errors.New("db down")}

	inserted, err := NewRunEnqueuer(inserter, 3, nil).Enqueue(context.Background(), models.TriggerSchedule)
	require.ErrorContains(t, err, "db down")
	assert.False(t, inserted)
}

func TestErrorHandler_HandlePanic_recordsOutcome(t *testing.T) {
	metrics := &fakeJobMetrics{}
	h := NewErrorHandler(metrics)

	assert.Nil(t, h.HandlePanic(context.Background(), &rivertype.JobRow{Kind: clusteringRunKind, Attempt: 1, MaxAttempts: 3}, "boom", ""))
	assert.Nil(t, h.HandlePanic(context.Background(), &rivertype.JobRow{Kind: clusteringRunKind, Attempt: 3, MaxAttempts: 3}, "boom", ""))
	assert.Nil(t, h.HandleError(context.Background(), &rivertype.JobRow{Kind: clusteringRunKind}, errors.New("x")))

	assert.Equal(t, []string{"retry", "failed"}, metrics.outcomes)
}
