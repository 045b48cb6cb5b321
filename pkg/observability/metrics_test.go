package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := NewMeterProvider(reader)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.AdmissionDecided(ctx, true, "admitted")
	m.AdmissionDecided(ctx, false, "quota.tenant")
	m.QuotaRejected(ctx, "tenant")
	m.CircuitTripped(ctx, "ocr")
	m.EventDeduplicated(ctx, "action.completed")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics[0].Metrics {
		names[sm.Name] = true
	}
	assert.True(t, names["admissions_total"])
	assert.True(t, names["quota_rejections_total"])
	assert.True(t, names["circuit_trips_total"])
	assert.True(t, names["events_deduplicated_total"])
}
