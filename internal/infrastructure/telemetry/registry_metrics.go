package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Registry metric names
const (
	MetricTransitions  = "integration_transitions_total"
	MetricHookDuration = "integration_hook_duration_seconds"
	MetricHealthChecks = "integration_health_checks_total"
	MetricEnabled      = "integration_enabled"
)

// Outcome values for AttrOutcome
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RegistryMetrics records integration lifecycle metrics
type RegistryMetrics struct {
	transitions  *Counter
	hookDuration *Histogram
	healthChecks *Counter
	enabled      *Gauge
}

// NewRegistryMetrics creates the registry instruments on meter
func NewRegistryMetrics(meter metric.Meter) (*RegistryMetrics, error) {
	transitions, err := NewCounter(meter, MetricTransitions,
		"Integration lifecycle transitions by operation and outcome", "{transition}")
	if err != nil {
		return nil, err
	}
	hookDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        MetricHookDuration,
		Description: "Lifecycle hook execution time",
		Unit:        "s",
		Boundaries:  HookDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	healthChecks, err := NewCounter(meter, MetricHealthChecks,
		"Health probes by resulting status", "{check}")
	if err != nil {
		return nil, err
	}
	enabled, err := NewGauge(meter, MetricEnabled,
		"Number of currently enabled integrations", "{integration}")
	if err != nil {
		return nil, err
	}

	return &RegistryMetrics{
		transitions:  transitions,
		hookDuration: hookDuration,
		healthChecks: healthChecks,
		enabled:      enabled,
	}, nil
}

// RecordTransition counts a register, unregister, enable or disable attempt
func (m *RegistryMetrics) RecordTransition(ctx context.Context, operation, integrationID string, err error) {
	m.transitions.Inc(ctx,
		AttrOperation.String(operation),
		AttrIntegrationID.String(integrationID),
		AttrOutcome.String(outcome(err)),
	)
}

// RecordHook records how long a lifecycle hook ran
func (m *RegistryMetrics) RecordHook(ctx context.Context, hook, integrationID string, d time.Duration, err error) {
	m.hookDuration.RecordDuration(ctx, d,
		AttrHook.String(hook),
		AttrIntegrationID.String(integrationID),
		AttrOutcome.String(outcome(err)),
	)
}

// RecordHealthCheck counts one probe result
func (m *RegistryMetrics) RecordHealthCheck(ctx context.Context, integrationID, status string) {
	m.healthChecks.Inc(ctx,
		AttrIntegrationID.String(integrationID),
		AttrHealthStatus.String(status),
	)
}

// RecordEnabledCount sets the enabled integrations gauge
func (m *RegistryMetrics) RecordEnabledCount(ctx context.Context, n int) {
	m.enabled.Record(ctx, int64(n))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
