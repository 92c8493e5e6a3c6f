// Package jobs runs clustering pipeline executions as River jobs.
package jobs

import (
	"github.com/riverqueue/river"

	"github.com/formbricks/insights/internal/models"
)

const (
	clusteringRunKind = "clustering_run"
	// QueueName is the River queue used for clustering run jobs.
	QueueName = "clustering"
)

// ClusteringRunArgs is the job payload for one pipeline execution. Trigger is carried through to
// the run history record.
type ClusteringRunArgs struct {
	Trigger models.RunTrigger `json:"trigger"`
}

// Kind returns the River job kind.
func (ClusteringRunArgs) Kind() string { return clusteringRunKind }

var _ river.JobArgs = ClusteringRunArgs{}
