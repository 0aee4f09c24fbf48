// Package health provides the probes the registry runs during health sweeps.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
)

// ErrNoEndpoint is returned by probes that have nothing to check for an integration
var ErrNoEndpoint = errors.New("integration has no health check endpoint")

// Prober checks one integration
type Prober interface {
	Probe(ctx context.Context, in *integration.Integration) (integration.HealthReport, error)
}

// MetricsProber derives health from the metrics an integration reports about itself
type MetricsProber struct{}

// Probe implements Prober
func (MetricsProber) Probe(_ context.Context, in *integration.Integration) (integration.HealthReport, error) {
	return integration.ReportFromMetrics(in.Metrics), nil
}

// HTTPProber issues a GET against an integration's HealthCheckURL.
// 2xx is healthy, 4xx a warning and 5xx critical. Transport failures are
// returned as errors so the registry records them as probe failures.
type HTTPProber struct {
	client *http.Client
	logger *zap.Logger
}

// HTTPProberOption configures an HTTPProber
type HTTPProberOption func(*HTTPProber)

// WithHTTPClient sets the client used for probes
func WithHTTPClient(client *http.Client) HTTPProberOption {
	return func(p *HTTPProber) {
		p.client = client
	}
}

// WithProberLogger sets the prober logger
func WithProberLogger(logger *zap.Logger) HTTPProberOption {
	return func(p *HTTPProber) {
		p.logger = logger
	}
}

// NewHTTPProber creates an HTTPProber. The request deadline comes from ctx.
func NewHTTPProber(opts ...HTTPProberOption) *HTTPProber {
	p := &HTTPProber{
		client: &http.Client{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe implements Prober
func (p *HTTPProber) Probe(ctx context.Context, in *integration.Integration) (integration.HealthReport, error) {
	if in.HealthCheckURL == "" {
		return integration.HealthReport{}, ErrNoEndpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.HealthCheckURL, nil)
	if err != nil {
		return integration.HealthReport{}, fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("User-Agent", "integration-registry/health")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return integration.HealthReport{}, fmt.Errorf("health request to %s: %w", in.HealthCheckURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	elapsed := time.Since(start)

	report := integration.HealthReport{
		Status:       integration.HealthStatusHealthy,
		Uptime:       100,
		ResponseTime: float64(elapsed.Microseconds()) / 1000,
		Issues:       make([]integration.HealthIssue, 0),
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		report.Status = integration.HealthStatusCritical
		report.Uptime = 0
		report.Issues = append(report.Issues, integration.HealthIssue{
			Type:    integration.IssueTypeError,
			Code:    integration.IssueEndpointFailure,
			Message: fmt.Sprintf("health endpoint answered %d", resp.StatusCode),
		})
	case resp.StatusCode >= http.StatusBadRequest:
		report.Status = integration.HealthStatusWarning
		report.Issues = append(report.Issues, integration.HealthIssue{
			Type:    integration.IssueTypeWarning,
			Code:    integration.IssueEndpointFailure,
			Message: fmt.Sprintf("health endpoint answered %d", resp.StatusCode),
		})
	}

	p.logger.Debug("health endpoint probed",
		zap.String("integration_id", in.ID),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
	)
	return report, nil
}

// CompositeProber runs several probers and keeps the worst result.
// Probers answering ErrNoEndpoint are skipped; any other error fails the probe.
type CompositeProber struct {
	probers []Prober
}

// NewCompositeProber creates a CompositeProber running probers in order
func NewCompositeProber(probers ...Prober) *CompositeProber {
	return &CompositeProber{probers: probers}
}

// Probe implements Prober
func (c *CompositeProber) Probe(ctx context.Context, in *integration.Integration) (integration.HealthReport, error) {
	var (
		merged integration.HealthReport
		seen   bool
	)
	for _, p := range c.probers {
		report, err := p.Probe(ctx, in)
		if errors.Is(err, ErrNoEndpoint) {
			continue
		}
		if err != nil {
			return integration.HealthReport{}, err
		}
		if !seen {
			merged = report
			merged.Issues = append(make([]integration.HealthIssue, 0, len(report.Issues)), report.Issues...)
			seen = true
			continue
		}
		merged = mergeReports(merged, report)
	}
	if !seen {
		return integration.HealthReport{}, ErrNoEndpoint
	}
	return merged, nil
}

func mergeReports(a, b integration.HealthReport) integration.HealthReport {
	if b.Status.Severity() > a.Status.Severity() {
		a.Status = b.Status
	}
	a.Uptime = min(a.Uptime, b.Uptime)
	a.ErrorRate = max(a.ErrorRate, b.ErrorRate)
	a.ResponseTime = max(a.ResponseTime, b.ResponseTime)
	a.Issues = append(a.Issues, b.Issues...)
	return a
}
