package event

import (
	"context"

	"github.com/bizhub/integrations/internal/domain/shared"
)

// FuncHandler adapts a function to shared.EventHandler.
// Handlers are compared by pointer, so keep the returned value to Unsubscribe.
type FuncHandler struct {
	fn         func(ctx context.Context, event shared.DomainEvent) error
	eventTypes []string
}

// NewFuncHandler wraps fn. No event types means all events.
func NewFuncHandler(fn func(ctx context.Context, event shared.DomainEvent) error, eventTypes ...string) *FuncHandler {
	return &FuncHandler{fn: fn, eventTypes: eventTypes}
}

// Handle calls the wrapped function
func (h *FuncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	return h.fn(ctx, event)
}

// EventTypes returns the subscribed event types
func (h *FuncHandler) EventTypes() []string {
	return h.eventTypes
}

var _ shared.EventHandler = (*FuncHandler)(nil)
