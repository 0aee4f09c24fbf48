package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     telemetry.ProfilerConfig
		wantErr string
	}{
		{
			name:    "missing server address",
			cfg:     telemetry.ProfilerConfig{Enabled: true, ApplicationName: "registry"},
			wantErr: "server address",
		},
		{
			name:    "missing application name",
			cfg:     telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"},
			wantErr: "application name",
		},
		{
			name: "unknown profile type",
			cfg: telemetry.ProfilerConfig{
				Enabled:         true,
				ServerAddress:   "http://localhost:4040",
				ApplicationName: "registry",
				ProfileTypes:    []string{"cpu", "heap"},
			},
			wantErr: `unknown profile type "heap"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := telemetry.NewProfiler(tt.cfg, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseProfileTypes(t *testing.T) {
	types, err := telemetry.ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Len(t, types, len(telemetry.DefaultProfileTypes))

	types, err = telemetry.ParseProfileTypes([]string{"CPU", " mutex_count ", "cpu"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileMutexCount}, types)
}

func TestWithProfilingLabels(t *testing.T) {
	var route, integrationID, empty string
	var hasEmpty bool
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		telemetry.ProfilingLabelRoute:       "/api/v1/integrations/:id/enable",
		telemetry.ProfilingLabelIntegration: strings.Repeat("x", 200),
		"blank":                             "",
	}, func(ctx context.Context) {
		route, _ = pprof.Label(ctx, telemetry.ProfilingLabelRoute)
		integrationID, _ = pprof.Label(ctx, telemetry.ProfilingLabelIntegration)
		empty, hasEmpty = pprof.Label(ctx, "blank")
	})

	assert.Equal(t, "/api/v1/integrations/:id/enable", route)
	assert.Len(t, integrationID, telemetry.MaxLabelValueLength)
	assert.False(t, hasEmpty)
	assert.Empty(t, empty)
}

func TestWithProfilingLabels_NoLabels(t *testing.T) {
	called := false
	telemetry.WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
		called = true
		_, ok := pprof.Label(ctx, telemetry.ProfilingLabelRoute)
		assert.False(t, ok)
	})
	assert.True(t, called)
}
