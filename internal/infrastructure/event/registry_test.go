package event

import (
	"context"
	"testing"

	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

type noopHandler struct {
	name string
}

func (h *noopHandler) Handle(context.Context, shared.DomainEvent) error { return nil }
func (h *noopHandler) EventTypes() []string { return nil }

func TestHandlerRegistry_Register_SpecificTypes(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := &noopHandler{name: "cache"}

	registry.Register(handler, "integration:enabled", "integration:disabled")

	assert.Equal(t, []shared.EventHandler{handler}, registry.GetHandlers("integration:enabled"))
	assert.Equal(t, []shared.EventHandler{handler}, registry.GetHandlers("integration:disabled"))
	assert.Empty(t, registry.GetHandlers("integration:registered"))
}

func TestHandlerRegistry_Register_Idempotent(t *testing.T) {
	registry := NewHandlerRegistry()
	handler := &noopHandler{name: "cache"}

	registry.Register(handler, "integration:enabled")
	registry.Register(handler, "integration:enabled")
	registry.Register(handler)
	registry.Register(handler)

	assert.Len(t, registry.GetHandlers("integration:enabled"), 1)
	assert.Equal(t, 1, registry.Count())
}

func TestHandlerRegistry_GetHandlers_TypeSpecificBeforeWildcard(t *testing.T) {
	registry := NewHandlerRegistry()
	wildcard := &noopHandler{name: "audit"}
	specific := &noopHandler{name: "cache"}

	registry.Register(wildcard)
	registry.Register(specific, "integration:enabled")

	handlers := registry.GetHandlers("integration:enabled")
	assert.Equal(t, []shared.EventHandler{specific, wildcard}, handlers)
	assert.Equal(t, []shared.EventHandler{wildcard}, registry.GetHandlers("context:changed"))
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()
	first := &noopHandler{name: "first"}
	second := &noopHandler{name: "second"}

	registry.Register(first, "integration:enabled")
	registry.Register(second, "integration:enabled")
	registry.Register(first)

	registry.Unregister(first)

	assert.Equal(t, []shared.EventHandler{second}, registry.GetHandlers("integration:enabled"))
	assert.Equal(t, 1, registry.Count())

	registry.Unregister(second)
	assert.Empty(t, registry.GetHandlers("integration:enabled"))
	assert.Equal(t, 0, registry.Count())
}
