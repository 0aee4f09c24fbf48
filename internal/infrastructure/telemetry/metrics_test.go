package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "integration-registry",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, mp)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProviderWithReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, telemetry.MetricsConfig{ServiceName: "svc"}, zaptest.NewLogger(t))

	assert.True(t, mp.IsEnabled())
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestCounter_Inc(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, telemetry.MetricsConfig{}, zaptest.NewLogger(t))
	ctx := context.Background()

	counter, err := telemetry.NewCounter(mp.Meter("test"), "test_counter", "Test counter", "1")
	require.NoError(t, err)

	counter.Inc(ctx, attribute.String("operation", "enable"))
	counter.Inc(ctx, attribute.String("operation", "enable"))

	sum, ok := collect(t, reader)["test_counter"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}

func TestHistogram_RecordDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, telemetry.MetricsConfig{}, zaptest.NewLogger(t))

	histogram, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name:       "test_duration",
		Unit:       "s",
		Boundaries: telemetry.HookDurationBuckets,
	})
	require.NoError(t, err)

	histogram.RecordDuration(context.Background(), 250*time.Millisecond)

	hist, ok := collect(t, reader)["test_duration"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, telemetry.HookDurationBuckets, hist.DataPoints[0].Bounds)
	assert.InDelta(t, 0.25, hist.DataPoints[0].Sum, 0.0001)
}

func TestGauge_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, telemetry.MetricsConfig{}, zaptest.NewLogger(t))

	gauge, err := telemetry.NewGauge(mp.Meter("test"), "test_gauge", "Test gauge", "1")
	require.NoError(t, err)

	gauge.Record(context.Background(), 3)
	gauge.Record(context.Background(), 7)

	g, ok := collect(t, reader)["test_gauge"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.Equal(t, int64(7), g.DataPoints[0].Value)
}
