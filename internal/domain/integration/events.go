package integration

import (
	"time"

	"github.com/bizhub/integrations/internal/domain/shared"
)

// Aggregate types carried on lifecycle events
const (
	AggregateTypeIntegration = "Integration"
	AggregateTypeRegistry    = "IntegrationRegistry"
)

// Event type constants
const (
	EventTypeContextChanged          = "context:changed"
	EventTypeIntegrationRegistered   = "integration:registered"
	EventTypeIntegrationUnregistered = "integration:unregistered"
	EventTypeIntegrationEnabled      = "integration:enabled"
	EventTypeIntegrationDisabled     = "integration:disabled"
	EventTypeHealthChecked           = "integration:health_checked"
	EventTypeEnhancedFeaturesUpdated = "enhanced_features:updated"
)

// AllEventTypes returns every lifecycle event type
func AllEventTypes() []string {
	return []string{
		EventTypeContextChanged,
		EventTypeIntegrationRegistered,
		EventTypeIntegrationUnregistered,
		EventTypeIntegrationEnabled,
		EventTypeIntegrationDisabled,
		EventTypeHealthChecked,
		EventTypeEnhancedFeaturesUpdated,
	}
}

// ContextChangedEvent is published when SetContext replaces the context
type ContextChangedEvent struct {
	shared.BaseDomainEvent
	UserID     string `json:"user_id,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
	Plan       string `json:"plan,omitempty"`
}

// NewContextChangedEvent creates a new ContextChangedEvent
func NewContextChangedEvent(ctx *Context, at time.Time) *ContextChangedEvent {
	e := &ContextChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeContextChanged, AggregateTypeRegistry, "", at),
	}
	if ctx != nil && ctx.User != nil {
		e.UserID = ctx.User.ID
	}
	if ctx != nil && ctx.Business != nil {
		e.BusinessID = ctx.Business.ID
		e.Plan = ctx.Business.Plan
	}
	return e
}

// IntegrationRegisteredEvent is published after an integration is committed to the registry
type IntegrationRegisteredEvent struct {
	shared.BaseDomainEvent
	IntegrationID string   `json:"integration_id"`
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Category      Category `json:"category"`
}

// NewIntegrationRegisteredEvent creates a new IntegrationRegisteredEvent
func NewIntegrationRegisteredEvent(in *Integration, at time.Time) *IntegrationRegisteredEvent {
	return &IntegrationRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntegrationRegistered, AggregateTypeIntegration, in.ID, at),
		IntegrationID:   in.ID,
		Name:            in.Name,
		Version:         in.Version,
		Category:        in.Category,
	}
}

// IntegrationUnregisteredEvent is published after an integration is purged
type IntegrationUnregisteredEvent struct {
	shared.BaseDomainEvent
	IntegrationID string `json:"integration_id"`
}

// NewIntegrationUnregisteredEvent creates a new IntegrationUnregisteredEvent
func NewIntegrationUnregisteredEvent(id string, at time.Time) *IntegrationUnregisteredEvent {
	return &IntegrationUnregisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntegrationUnregistered, AggregateTypeIntegration, id, at),
		IntegrationID:   id,
	}
}

// IntegrationEnabledEvent is published for each integration an enable call turns on.
// TriggeredBy names the integration whose enable cascaded into this one; it
// equals IntegrationID for the requested integration itself.
type IntegrationEnabledEvent struct {
	shared.BaseDomainEvent
	IntegrationID string `json:"integration_id"`
	TriggeredBy   string `json:"triggered_by"`
}

// IsCascade reports whether the integration was enabled as a dependency
func (e *IntegrationEnabledEvent) IsCascade() bool {
	return e.TriggeredBy != e.IntegrationID
}

// NewIntegrationEnabledEvent creates a new IntegrationEnabledEvent
func NewIntegrationEnabledEvent(id, triggeredBy string, at time.Time) *IntegrationEnabledEvent {
	return &IntegrationEnabledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntegrationEnabled, AggregateTypeIntegration, id, at),
		IntegrationID:   id,
		TriggeredBy:     triggeredBy,
	}
}

// IntegrationDisabledEvent is published after an integration is disabled
type IntegrationDisabledEvent struct {
	shared.BaseDomainEvent
	IntegrationID string `json:"integration_id"`
}

// NewIntegrationDisabledEvent creates a new IntegrationDisabledEvent
func NewIntegrationDisabledEvent(id string, at time.Time) *IntegrationDisabledEvent {
	return &IntegrationDisabledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeIntegrationDisabled, AggregateTypeIntegration, id, at),
		IntegrationID:   id,
	}
}

// HealthCheckedEvent is published for each integration a health sweep probed
type HealthCheckedEvent struct {
	shared.BaseDomainEvent
	IntegrationID string       `json:"integration_id"`
	Status        HealthStatus `json:"status"`
	OpenIssues    int          `json:"open_issues"`
	Error         string       `json:"error,omitempty"`
}

// NewHealthCheckedEvent creates a new HealthCheckedEvent
func NewHealthCheckedEvent(id string, health Health, probeErr error, at time.Time) *HealthCheckedEvent {
	e := &HealthCheckedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeHealthChecked, AggregateTypeIntegration, id, at),
		IntegrationID:   id,
		Status:          health.Status,
		OpenIssues:      len(health.OpenIssues()),
	}
	if probeErr != nil {
		e.Error = probeErr.Error()
	}
	return e
}

// EnhancedFeaturesUpdatedEvent is published when the set of available
// enhanced features changes
type EnhancedFeaturesUpdatedEvent struct {
	shared.BaseDomainEvent
	Available []string `json:"available"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
}

// NewEnhancedFeaturesUpdatedEvent creates a new EnhancedFeaturesUpdatedEvent
func NewEnhancedFeaturesUpdatedEvent(available, added, removed []string, at time.Time) *EnhancedFeaturesUpdatedEvent {
	return &EnhancedFeaturesUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEnhancedFeaturesUpdated, AggregateTypeRegistry, "", at),
		Available:       available,
		Added:           added,
		Removed:         removed,
	}
}
