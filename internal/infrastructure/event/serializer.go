package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

// ErrUnknownEventType is returned when decoding a type with no factory
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer encodes lifecycle events as JSON and decodes them back
// into their concrete types. It is immutable once built.
type EventSerializer struct {
	factories map[string]func() shared.DomainEvent
}

// NewIntegrationEventSerializer returns a serializer for every lifecycle event
func NewIntegrationEventSerializer() *EventSerializer {
	return &EventSerializer{factories: map[string]func() shared.DomainEvent{
		integration.EventTypeContextChanged:          func() shared.DomainEvent { return &integration.ContextChangedEvent{} },
		integration.EventTypeIntegrationRegistered:   func() shared.DomainEvent { return &integration.IntegrationRegisteredEvent{} },
		integration.EventTypeIntegrationUnregistered: func() shared.DomainEvent { return &integration.IntegrationUnregisteredEvent{} },
		integration.EventTypeIntegrationEnabled:      func() shared.DomainEvent { return &integration.IntegrationEnabledEvent{} },
		integration.EventTypeIntegrationDisabled:     func() shared.DomainEvent { return &integration.IntegrationDisabledEvent{} },
		integration.EventTypeHealthChecked:           func() shared.DomainEvent { return &integration.HealthCheckedEvent{} },
		integration.EventTypeEnhancedFeaturesUpdated: func() shared.DomainEvent { return &integration.EnhancedFeaturesUpdatedEvent{} },
	}}
}

// Serialize encodes event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize decodes data into a fresh event of eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	factory, ok := s.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	return event, nil
}
