package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
)

type probeResult struct {
	id     string
	report integration.HealthReport
	err    error
}

// CheckIntegrationHealth probes id, or every enabled integration when id is
// empty, and merges the results into their health records. Probe failures and
// timeouts mark the integration critical with an unresolved issue; they never
// abort the sweep and are not returned. Only an unknown id is an error.
func (r *Registry) CheckIntegrationHealth(ctx context.Context, id string) (map[string]integration.Health, error) {
	id = canonicalID(id)
	ctx, span := r.startSpan(ctx, "health_check", telemetry.SpanAttrIntegrationID, id)
	defer span.End()

	r.mu.RLock()
	var targets []*integration.Integration
	if id != "" {
		in, ok := r.integrations[id]
		if !ok {
			r.mu.RUnlock()
			err := fmt.Errorf("%w: integration %s", shared.ErrNotFound, id)
			telemetry.RecordError(span, err)
			return nil, err
		}
		targets = append(targets, in.Clone())
	} else {
		for _, candidate := range r.order {
			if in := r.integrations[candidate]; in.IsEnabled {
				targets = append(targets, in.Clone())
			}
		}
	}
	r.mu.RUnlock()

	results := r.probeAll(ctx, targets)

	r.mu.Lock()
	at := r.now()
	healthByID := make(map[string]integration.Health, len(results))
	events := make([]shared.DomainEvent, 0, len(results))
	for _, res := range results {
		stored, ok := r.integrations[res.id]
		if !ok {
			// unregistered while probing
			continue
		}
		if res.err != nil {
			code := integration.IssueProbeFailed
			if errors.Is(res.err, context.DeadlineExceeded) {
				code = integration.IssueProbeTimeout
			}
			stored.Health.RecordFailure(code, res.err.Error(), at)
		} else {
			stored.Health.Apply(res.report, at)
		}
		snapshot := stored.Clone().Health
		healthByID[res.id] = snapshot
		events = append(events, integration.NewHealthCheckedEvent(res.id, snapshot, res.err, at))
	}
	r.queueEvents(ctx, events...)
	r.mu.Unlock()

	for _, res := range results {
		h, ok := healthByID[res.id]
		if !ok {
			continue
		}
		r.metrics.RecordHealthCheck(ctx, res.id, h.Status.String())
		if res.err != nil {
			r.log(ctx).Warn("health probe failed", zap.String("integration_id", res.id), zap.Error(res.err))
		}
	}
	r.flushEvents()
	return healthByID, nil
}

// probeAll runs probes concurrently, each bounded by the health check timeout.
// Results keep the order of targets.
func (r *Registry) probeAll(ctx context.Context, targets []*integration.Integration) []probeResult {
	results := make([]probeResult, len(targets))
	sem := make(chan struct{}, healthCheckConcurrency)
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.probe(ctx, target)
		}()
	}
	wg.Wait()
	return results
}

func (r *Registry) probe(ctx context.Context, in *integration.Integration) probeResult {
	pctx, cancel := context.WithTimeout(ctx, r.healthTimeout)
	defer cancel()

	done := make(chan probeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- probeResult{id: in.ID, err: fmt.Errorf("health probe panicked: %v", p)}
			}
		}()
		report, err := r.prober.Probe(pctx, in)
		done <- probeResult{id: in.ID, report: report, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-pctx.Done():
		return probeResult{id: in.ID, err: fmt.Errorf("health probe: %w", pctx.Err())}
	}
}
