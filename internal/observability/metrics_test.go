package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/zlbkkk/cloudimpact/internal/observability"
)

func TestNewAnalysisMetricsBuildsInstruments(t *testing.T) {
	t.Parallel()

	meter := noop.NewMeterProvider().Meter("test")

	metrics, err := observability.NewAnalysisMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)
}

func TestAnalysisMetricsRecordersAreNilSafe(t *testing.T) {
	t.Parallel()

	var metrics *observability.AnalysisMetrics

	assert.NotPanics(t, func() {
		metrics.RecordTaskCompletion(context.Background(), "COMPLETED", 12.5, 3)
		metrics.RecordImpact(context.Background(), "class_reference")
		metrics.RecordCacheLookup(context.Background(), true)
		metrics.RecordDegradedProject(context.Background())
	})
}

func TestAnalysisMetricsRecordersRunOnRealInstruments(t *testing.T) {
	t.Parallel()

	meter := noop.NewMeterProvider().Meter("test")

	metrics, err := observability.NewAnalysisMetrics(meter)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		metrics.RecordTaskCompletion(context.Background(), "FAILED", 1.0, 0)
		metrics.RecordImpact(context.Background(), "api_call")
		metrics.RecordCacheLookup(context.Background(), false)
		metrics.RecordDegradedProject(context.Background())
	})
}
