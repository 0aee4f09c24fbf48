package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, *telemetry.TracerProvider) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := telemetry.NewTracerProviderWithProcessor(recorder, telemetry.Config{}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder, tp
}

func TestStartSpan_NameAndAttributes(t *testing.T) {
	recorder, tp := newRecordingTracer(t)

	ctx, span := telemetry.StartSpan(context.Background(), tp.Tracer(telemetry.TracerName), "registry", "enable",
		telemetry.SpanAttrIntegrationID, "crm",
		telemetry.SpanAttrCascade, true,
		"ignored-odd-key",
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	assert.NotEmpty(t, telemetry.GetSpanID(ctx))
	span.End()

	require.Len(t, recorder.Ended(), 1)
	ended := recorder.Ended()[0]
	assert.Equal(t, "registry.enable", ended.Name())
	assert.Contains(t, ended.Attributes(), attribute.String(telemetry.SpanAttrIntegrationID, "crm"))
	assert.Contains(t, ended.Attributes(), attribute.Bool(telemetry.SpanAttrCascade, true))
	assert.Len(t, ended.Attributes(), 2)
}

func TestRecordError(t *testing.T) {
	recorder, tp := newRecordingTracer(t)

	_, span := telemetry.StartSpan(context.Background(), tp.Tracer("test"), "registry", "disable")
	telemetry.RecordError(span, errors.New("required by crm"))
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("ignored"))
	span.End()

	ended := recorder.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "required by crm", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
}

func TestAddEvent(t *testing.T) {
	recorder, tp := newRecordingTracer(t)

	_, span := telemetry.StartSpan(context.Background(), tp.Tracer("test"), "registry", "enable")
	telemetry.AddEvent(span, "dependency_enabled", telemetry.SpanAttrIntegrationID, "core")
	telemetry.AddEvent(nil, "ignored")
	span.End()

	events := recorder.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "dependency_enabled", events[0].Name)
	assert.Contains(t, events[0].Attributes, attribute.String(telemetry.SpanAttrIntegrationID, "core"))
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))

	ctx, span := noop.NewTracerProvider().Tracer("noop").Start(context.Background(), "x")
	defer span.End()
	assert.Empty(t, telemetry.GetTraceID(ctx))
}
