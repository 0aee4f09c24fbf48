package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizhub/integrations/internal/domain/integration"
)

type stubProber struct {
	report integration.HealthReport
	err    error
	calls  int
}

func (s *stubProber) Probe(context.Context, *integration.Integration) (integration.HealthReport, error) {
	s.calls++
	return s.report, s.err
}

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProber_StatusMapping(t *testing.T) {
	tests := []struct {
		code       int
		wantStatus integration.HealthStatus
		wantIssues int
	}{
		{http.StatusOK, integration.HealthStatusHealthy, 0},
		{http.StatusNoContent, integration.HealthStatusHealthy, 0},
		{http.StatusTooManyRequests, integration.HealthStatusWarning, 1},
		{http.StatusServiceUnavailable, integration.HealthStatusCritical, 1},
	}
	p := NewHTTPProber()
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			srv := statusServer(t, tt.code)
			report, err := p.Probe(context.Background(), &integration.Integration{ID: "x", HealthCheckURL: srv.URL})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Len(t, report.Issues, tt.wantIssues)
			assert.GreaterOrEqual(t, report.ResponseTime, 0.0)
		})
	}
}

func TestHTTPProber_NoEndpoint(t *testing.T) {
	_, err := NewHTTPProber().Probe(context.Background(), &integration.Integration{ID: "x"})
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestHTTPProber_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPProber(WithHTTPClient(srv.Client())).Probe(ctx, &integration.Integration{ID: "x", HealthCheckURL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMetricsProber(t *testing.T) {
	report, err := MetricsProber{}.Probe(context.Background(), &integration.Integration{
		Metrics: integration.Metrics{SuccessRate: 85, Requests: 40},
	})
	require.NoError(t, err)
	assert.Equal(t, integration.HealthStatusCritical, report.Status)
}

func TestCompositeProber(t *testing.T) {
	t.Run("keeps worst status and all issues", func(t *testing.T) {
		a := &stubProber{report: integration.HealthReport{
			Status: integration.HealthStatusWarning, Uptime: 99, ResponseTime: 10,
			Issues: []integration.HealthIssue{{Code: "A"}},
		}}
		b := &stubProber{report: integration.HealthReport{
			Status: integration.HealthStatusHealthy, Uptime: 100, ResponseTime: 30,
			Issues: []integration.HealthIssue{{Code: "B"}},
		}}

		report, err := NewCompositeProber(a, b).Probe(context.Background(), &integration.Integration{})
		require.NoError(t, err)
		assert.Equal(t, integration.HealthStatusWarning, report.Status)
		assert.Equal(t, 99.0, report.Uptime)
		assert.Equal(t, 30.0, report.ResponseTime)
		assert.Len(t, report.Issues, 2)
		assert.Len(t, a.report.Issues, 1)
	})

	t.Run("skips probers without endpoint", func(t *testing.T) {
		skip := &stubProber{err: ErrNoEndpoint}
		ok := &stubProber{report: integration.HealthReport{Status: integration.HealthStatusHealthy}}

		report, err := NewCompositeProber(skip, ok).Probe(context.Background(), &integration.Integration{})
		require.NoError(t, err)
		assert.Equal(t, integration.HealthStatusHealthy, report.Status)
	})

	t.Run("all skipped", func(t *testing.T) {
		_, err := NewCompositeProber(&stubProber{err: ErrNoEndpoint}).Probe(context.Background(), &integration.Integration{})
		assert.ErrorIs(t, err, ErrNoEndpoint)
	})

	t.Run("failure stops the probe", func(t *testing.T) {
		boom := errors.New("boom")
		failing := &stubProber{err: boom}
		after := &stubProber{}

		_, err := NewCompositeProber(failing, after).Probe(context.Background(), &integration.Integration{})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, after.calls)
	})
}
