// Package observability provides OpenTelemetry metrics and tracing for the insights pipeline
// and a slog handler that stamps records with trace and run identifiers.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRuns                 = "insights_runs_total"
	MetricNameRunDuration          = "insights_run_duration_seconds"
	MetricNameStageDuration        = "insights_stage_duration_seconds"
	MetricNameThemesCreated        = "insights_themes_created_total"
	MetricNameInsightsCreated      = "insights_insights_created_total"
	MetricNameNoiseItems           = "insights_noise_items_total"
	MetricNameInsightsMerged       = "insights_insights_merged_total"
	MetricNameGenerations          = "insights_generations_total"
	MetricNameActiveThemes         = "insights_active_themes"
	MetricNameEmbeddingBatches     = "insights_embedding_batches_total"
	MetricNameEmbeddingTexts       = "insights_embedding_texts_total"
	MetricNameEmbeddingDuration    = "insights_embedding_duration_seconds"
	MetricNameEmbeddingCacheHits   = "insights_embedding_cache_hits_total"
	MetricNameEmbeddingCacheMisses = "insights_embedding_cache_misses_total"
	MetricNameJobsEnqueued         = "insights_jobs_enqueued_total"
	MetricNameJobOutcomes          = "insights_job_outcomes_total"
	MetricNameSchedulerTicks       = "insights_scheduler_ticks_total"
	MetricNameSchedulerLockSkips   = "insights_scheduler_lock_skips_total"
)

// Attribute keys.
const (
	AttrTrigger = "trigger"
	AttrStatus  = "status"
	AttrStage   = "stage"
	AttrKind    = "kind"
	AttrOutcome = "outcome"
)

// AllowedRunStatuses for insights_runs_total.
var AllowedRunStatuses = map[string]bool{
	"completed": true,
	"skipped":   true,
	"failed":    true,
	"conflict":  true,
}

// AllowedTriggers for run metrics.
var AllowedTriggers = map[string]bool{
	"schedule": true,
	"manual":   true,
}

// AllowedStages for insights_stage_duration_seconds.
var AllowedStages = map[string]bool{
	"snapshot":  true,
	"embed":     true,
	"cluster":   true,
	"synthesis": true,
	"metrics":   true,
	"persist":   true,
}

// AllowedGenerationKinds for insights_generations_total.
var AllowedGenerationKinds = map[string]bool{
	"insight": true,
}

// AllowedGenerationOutcomes for insights_generations_total.
var AllowedGenerationOutcomes = map[string]bool{
	"generated": true,
	"fallback":  true,
}

// AllowedEmbeddingStatuses for embedding batch metrics.
var AllowedEmbeddingStatuses = map[string]bool{
	"success": true,
	"failed":  true,
}

// AllowedJobOutcomes for insights_job_outcomes_total.
var AllowedJobOutcomes = map[string]bool{
	"completed": true,
	"skipped":   true,
	"conflict":  true,
	"retry":     true,
	"failed":    true,
}

// NormalizeReason returns value if in allowed, otherwise "other".
func NormalizeReason(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}
