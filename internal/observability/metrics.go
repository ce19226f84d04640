package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// durationBucketBoundaries covers 10ms to 10 minutes, matching the wall
// clock a task's git operations and LLM calls can take.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

const (
	metricTasksTotal        = "cloudimpact.tasks.total"
	metricTaskDuration      = "cloudimpact.task.duration.seconds"
	metricFilesAnalyzed     = "cloudimpact.files.analyzed.total"
	metricImpactsFound      = "cloudimpact.impacts.found.total"
	metricIndexCacheHits    = "cloudimpact.index_cache.hits.total"
	metricIndexCacheMisses  = "cloudimpact.index_cache.misses.total"
	metricDegradedProjects  = "cloudimpact.projects.degraded.total"

	attrStatus      = "status"
	attrImpactType  = "impact_type"
)

// AnalysisMetrics holds the OTel instruments for one impact engine process.
type AnalysisMetrics struct {
	tasksTotal       metric.Int64Counter
	taskDuration     metric.Float64Histogram
	filesAnalyzed    metric.Int64Counter
	impactsFound     metric.Int64Counter
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	degradedProjects metric.Int64Counter
}

// NewAnalysisMetrics builds the engine's domain metric instruments from mt.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	b := newMetricBuilder(mt)

	am := &AnalysisMetrics{
		tasksTotal:       b.counter(metricTasksTotal, "Total analysis tasks, by final status", "{task}"),
		taskDuration:     b.histogram(metricTaskDuration, "Wall-clock duration of a completed task", "s", durationBucketBoundaries...),
		filesAnalyzed:    b.counter(metricFilesAnalyzed, "Changed files that produced an AnalysisReport", "{file}"),
		impactsFound:     b.counter(metricImpactsFound, "Impacts recorded, by type", "{impact}"),
		cacheHits:        b.counter(metricIndexCacheHits, "Index cache hits", "{hit}"),
		cacheMisses:      b.counter(metricIndexCacheMisses, "Index cache misses", "{miss}"),
		degradedProjects: b.counter(metricDegradedProjects, "Related-project scan roots that degraded during a task", "{project}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return am, nil
}

// RecordTaskCompletion records one finished task's outcome and duration.
// Safe to call on a nil receiver.
func (am *AnalysisMetrics) RecordTaskCompletion(ctx context.Context, status string, durationSeconds float64, filesAnalyzed int) {
	if am == nil {
		return
	}

	am.tasksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	am.taskDuration.Record(ctx, durationSeconds)
	am.filesAnalyzed.Add(ctx, int64(filesAnalyzed))
}

// RecordImpact increments the impacts-found counter for one impact type.
func (am *AnalysisMetrics) RecordImpact(ctx context.Context, impactType string) {
	if am == nil {
		return
	}

	am.impactsFound.Add(ctx, 1, metric.WithAttributes(attribute.String(attrImpactType, impactType)))
}

// RecordCacheLookup increments the index cache hit or miss counter.
func (am *AnalysisMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if am == nil {
		return
	}

	if hit {
		am.cacheHits.Add(ctx, 1)

		return
	}

	am.cacheMisses.Add(ctx, 1)
}

// RecordDegradedProject increments the degraded-scan-root counter.
func (am *AnalysisMetrics) RecordDegradedProject(ctx context.Context) {
	if am == nil {
		return
	}

	am.degradedProjects.Add(ctx, 1)
}
