package models

import (
	"time"

	"github.com/google/uuid"
)

// ClusteringRunStatus represents the lifecycle state of a clustering run.
type ClusteringRunStatus string

const (
	RunStatusPending   ClusteringRunStatus = "pending"
	RunStatusRunning   ClusteringRunStatus = "running"
	RunStatusCompleted ClusteringRunStatus = "completed"
	RunStatusFailed    ClusteringRunStatus = "failed"
	RunStatusSkipped   ClusteringRunStatus = "skipped"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
)

// ClusteringRun is the persisted history record of one pipeline execution.
type ClusteringRun struct {
	ID              uuid.UUID           `json:"id"`
	Status          ClusteringRunStatus `json:"status"`
	Trigger         RunTrigger          `json:"trigger"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at,omitempty"`
	FeedbackCount   int                 `json:"feedback_count"`
	ThemesCreated   int                 `json:"themes_created"`
	InsightsCreated int                 `json:"insights_created"`
	NoiseCount      int                 `json:"noise_count"`
	Degraded        bool                `json:"degraded"`
	Duration        time.Duration       `json:"duration"`
	LastError       *string             `json:"last_error,omitempty"`
}

// RunResult is what a pipeline run reports to its invoker.
type RunResult struct {
	RunID           uuid.UUID     `json:"run_id"`
	ThemesCreated   int           `json:"themes_created"`
	InsightsCreated int           `json:"insights_created"`
	FeedbackCount   int           `json:"feedback_count"`
	NoiseCount      int           `json:"noise_count"`
	Degraded        bool          `json:"degraded"`
	Skipped         bool          `json:"skipped"`
	SkipReason      string        `json:"skip_reason,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// Status returns the terminal run status matching the result.
func (r RunResult) Status() ClusteringRunStatus {
	if r.Skipped {
		return RunStatusSkipped
	}

	return RunStatusCompleted
}
