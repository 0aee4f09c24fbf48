package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

func def(id string, deps ...integration.Dependency) *integration.Integration {
	return &integration.Integration{
		ID:           id,
		Name:         "Integration " + id,
		Version:      "1.0.0",
		Provider:     "Acme",
		Category:     integration.CategoryProductivity,
		Dependencies: deps,
	}
}

func requires(id string) integration.Dependency {
	return integration.Dependency{IntegrationID: id, Required: true}
}

func optional(id string) integration.Dependency {
	return integration.Dependency{IntegrationID: id}
}

// eventRecorder captures every lifecycle event the registry publishes
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (e *eventRecorder) Handle(_ context.Context, evt shared.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
	return nil
}

func (e *eventRecorder) EventTypes() []string {
	return integration.AllEventTypes()
}

func (e *eventRecorder) ofType(eventType string) []shared.DomainEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []shared.DomainEvent
	for _, evt := range e.events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func (e *eventRecorder) enabledOrder() []string {
	var ids []string
	for _, evt := range e.ofType(integration.EventTypeIntegrationEnabled) {
		ids = append(ids, evt.(*integration.IntegrationEnabledEvent).IntegrationID)
	}
	return ids
}

func (e *eventRecorder) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *eventRecorder) {
	t.Helper()
	r := NewRegistry(zaptest.NewLogger(t), opts...)
	rec := &eventRecorder{}
	r.Subscribe(rec)
	return r, rec
}

func mustRegister(t *testing.T, r *Registry, defs ...*integration.Integration) {
	t.Helper()
	for _, d := range defs {
		require.NoError(t, r.RegisterIntegration(context.Background(), d))
	}
}

func mustEnable(t *testing.T, r *Registry, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, r.EnableIntegration(context.Background(), id))
	}
}

func isEnabled(t *testing.T, r *Registry, id string) bool {
	t.Helper()
	in, err := r.GetIntegration(id)
	require.NoError(t, err)
	return in.IsEnabled
}
