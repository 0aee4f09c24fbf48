package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/infrastructure/event"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

func TestNewRegistry_NilLogger(t *testing.T) {
	r := NewRegistry(nil)
	require.NotNil(t, r)
	assert.NoError(t, r.RegisterIntegration(context.Background(), def("a")))
}

type rejectAll struct{}

func (rejectAll) Validate(*integration.Integration) error { return errors.New("rejected") }

func TestNewRegistry_WithValidator(t *testing.T) {
	r, _ := newTestRegistry(t, WithValidator(rejectAll{}))
	assert.EqualError(t, r.RegisterIntegration(context.Background(), def("a")), "rejected")
}

func TestNewRegistry_SharedEventBus(t *testing.T) {
	bus := event.NewInMemoryEventBus(zap.NewNop())
	rec := &eventRecorder{}
	bus.Subscribe(rec, integration.EventTypeIntegrationRegistered)

	r := NewRegistry(zap.NewNop(), WithEventBus(bus))
	mustRegister(t, r, def("a"))

	assert.Len(t, rec.ofType(integration.EventTypeIntegrationRegistered), 1)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r, rec := newTestRegistry(t)
	r.Unsubscribe(rec)

	mustRegister(t, r, def("a"))
	assert.Empty(t, rec.ofType(integration.EventTypeIntegrationRegistered))
}

func TestRegistry_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := telemetry.NewRegistryMetrics(mp.Meter(telemetry.TracerName))
	require.NoError(t, err)

	r, _ := newTestRegistry(t, WithMetrics(metrics))
	b := def("b", requires("a"))
	b.Hooks.OnEnable = func(context.Context, *integration.Integration) error { return nil }
	mustRegister(t, r, def("a"), b)
	mustEnable(t, r, "b")
	assert.Error(t, r.EnableIntegration(context.Background(), "ghost"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}

	transitions, ok := byName[telemetry.MetricTransitions].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var success, failure int64
	for _, dp := range transitions.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrOutcome)
		if v.AsString() == telemetry.OutcomeSuccess {
			success += dp.Value
		} else {
			failure += dp.Value
		}
	}
	// two registrations and one enable succeed
	assert.Equal(t, int64(3), success)
	assert.Equal(t, int64(1), failure)

	enabled, ok := byName[telemetry.MetricEnabled].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, enabled.DataPoints, 1)
	assert.Equal(t, int64(2), enabled.DataPoints[0].Value)

	hooks, ok := byName[telemetry.MetricHookDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hooks.DataPoints, 1)
	assert.Equal(t, uint64(1), hooks.DataPoints[0].Count)
}

func TestRegistry_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r, _ := newTestRegistry(t, WithTracer(tp.Tracer(telemetry.TracerName)))
	mustRegister(t, r, def("a"), def("b", requires("a")))
	mustEnable(t, r, "b")
	require.Error(t, r.DisableIntegration(context.Background(), "a"))

	spans := recorder.Ended()
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"registry.register", "registry.register", "registry.enable", "registry.disable"}, names)

	enable := spans[2]
	require.Len(t, enable.Events(), 1)
	assert.Equal(t, "enable plan", enable.Events()[0].Name)

	disable := spans[3]
	assert.Equal(t, "Error", disable.Status().Code.String())
}

// Scenario walk-throughs for the registry as a whole.

func TestRegistry_EnhancedFeatureAppearsWhenAllParticipantsEnabled(t *testing.T) {
	r, rec := newTestRegistry(t)
	mustRegister(t, r, def("m"), def("n"))
	require.NoError(t, r.RegisterEnhancedFeature(context.Background(), integration.EnhancedFeature{
		ID:                    "m-plus-n",
		BaseIntegration:       "M",
		EnhancingIntegrations: []string{"N"},
		Name:                  "M with N",
	}))

	assert.Empty(t, r.GetAvailableEnhancedFeatures())
	mustEnable(t, r, "m")
	assert.Empty(t, r.GetAvailableEnhancedFeatures())

	mustEnable(t, r, "n")
	available := r.GetAvailableEnhancedFeatures()
	require.Len(t, available, 1)
	assert.Equal(t, "m-plus-n", available[0].ID)

	require.NoError(t, r.DisableIntegration(context.Background(), "n"))
	assert.Empty(t, r.GetAvailableEnhancedFeatures())
	assert.Len(t, r.GetEnhancedFeatures(), 1)

	updates := rec.ofType(integration.EventTypeEnhancedFeaturesUpdated)
	require.Len(t, updates, 2)
	added := updates[0].(*integration.EnhancedFeaturesUpdatedEvent)
	assert.Equal(t, []string{"m-plus-n"}, added.Added)
	removed := updates[1].(*integration.EnhancedFeaturesUpdatedEvent)
	assert.Equal(t, []string{"m-plus-n"}, removed.Removed)
}

func TestRegistry_EnhancedFeature_Duplicate(t *testing.T) {
	r, _ := newTestRegistry(t)
	feature := integration.EnhancedFeature{ID: "f", BaseIntegration: "a", EnhancingIntegrations: []string{"b"}}
	require.NoError(t, r.RegisterEnhancedFeature(context.Background(), feature))
	assert.Error(t, r.RegisterEnhancedFeature(context.Background(), feature))
}

func TestRegistry_CycleIsReportedAndRefused(t *testing.T) {
	r, _ := newTestRegistry(t)
	mustRegister(t, r, def("a", requires("b")), def("b", requires("c")), def("c", requires("a")))

	cycles := r.DetectCircularDependencies()
	require.Len(t, cycles, 1)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cycles[0])

	_, err := r.GetInstallationOrder([]string{"a", "b", "c"})
	assert.Error(t, err)

	issues := r.ValidateDependencyGraph()
	require.NotEmpty(t, issues)
	assert.Contains(t, codesOf(issues), "CIRCULAR_DEPENDENCY")
}
