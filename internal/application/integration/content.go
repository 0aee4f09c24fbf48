package integration

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

// SetContext replaces the request-scoped context wholesale. A nil context
// clears it, after which no conditional content is returned.
func (r *Registry) SetContext(ctx context.Context, ic *integration.Context) {
	r.mu.Lock()
	r.context = ic
	r.queueEvents(ctx, integration.NewContextChangedEvent(ic, r.now()))
	r.mu.Unlock()

	r.log(ctx).Debug("integration context changed", zap.Bool("cleared", ic == nil))
	r.flushEvents()
}

// GetContext returns the current context, or nil
func (r *Registry) GetContext() *integration.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.context
}

// RegisterConditionalContent stores content under its owning integration.
// An empty ID is assigned one.
func (r *Registry) RegisterConditionalContent(ctx context.Context, content integration.ConditionalContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content.IntegrationID = canonicalID(content.IntegrationID)
	if err := content.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(content.ID) == "" {
		content.ID = uuid.NewString()
	}
	content.Conditions = slices.Clone(content.Conditions)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.integrations[content.IntegrationID]; !ok {
		return fmt.Errorf("%w: integration %s", shared.ErrNotFound, content.IntegrationID)
	}
	existing := r.content[content.IntegrationID]
	if slices.ContainsFunc(existing, func(c integration.ConditionalContent) bool { return c.ID == content.ID }) {
		return fmt.Errorf("%w: conditional content %s", shared.ErrAlreadyExists, content.ID)
	}
	r.content[content.IntegrationID] = append(existing, content)

	r.log(ctx).Debug("conditional content registered",
		zap.String("integration_id", content.IntegrationID),
		zap.String("content_id", content.ID),
		zap.Int("conditions", len(content.Conditions)),
	)
	return nil
}

// GetConditionalContent returns the content whose conditions all hold for the
// current context. With an empty id it aggregates over enabled integrations
// in registration order; otherwise it reads only id's content. Without a
// context nothing is returned.
func (r *Registry) GetConditionalContent(id string) []integration.ConditionalContent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]integration.ConditionalContent, 0)
	if r.context == nil {
		return result
	}

	owners := []string{canonicalID(id)}
	if id == "" {
		owners = owners[:0]
		for _, owner := range r.order {
			if r.isEnabled(owner) {
				owners = append(owners, owner)
			}
		}
	}
	for _, owner := range owners {
		for _, content := range r.content[owner] {
			if content.Matches(r.context, r.isEnabled) {
				result = append(result, content)
			}
		}
	}
	return result
}

// RegisterEnhancedFeature stores a feature. Its availability is derived from
// the enabled set on every read.
func (r *Registry) RegisterEnhancedFeature(ctx context.Context, feature integration.EnhancedFeature) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	feature.ID = strings.TrimSpace(feature.ID)
	feature.BaseIntegration = canonicalID(feature.BaseIntegration)
	feature.EnhancingIntegrations = slices.Clone(feature.EnhancingIntegrations)
	for i, id := range feature.EnhancingIntegrations {
		feature.EnhancingIntegrations[i] = canonicalID(id)
	}
	if err := feature.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.features[feature.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: enhanced feature %s", shared.ErrAlreadyExists, feature.ID)
	}
	r.features[feature.ID] = feature
	r.featureOrder = append(r.featureOrder, feature.ID)
	if evt := r.refreshFeatures(r.now()); evt != nil {
		r.queueEvents(ctx, evt)
	}
	r.mu.Unlock()

	r.log(ctx).Debug("enhanced feature registered",
		zap.String("feature_id", feature.ID),
		zap.String("base_integration", feature.BaseIntegration),
	)
	r.flushEvents()
	return nil
}

// GetAvailableEnhancedFeatures returns the features whose base and every
// enhancing integration are enabled, in registration order
func (r *Registry) GetAvailableEnhancedFeatures() []integration.EnhancedFeature {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]integration.EnhancedFeature, 0)
	for _, id := range r.featureOrder {
		feature := r.features[id]
		if feature.IsAvailable(r.isEnabled) {
			feature.EnhancingIntegrations = slices.Clone(feature.EnhancingIntegrations)
			result = append(result, feature)
		}
	}
	return result
}

// GetEnhancedFeatures returns every registered feature in registration order
func (r *Registry) GetEnhancedFeatures() []integration.EnhancedFeature {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]integration.EnhancedFeature, 0, len(r.featureOrder))
	for _, id := range r.featureOrder {
		feature := r.features[id]
		feature.EnhancingIntegrations = slices.Clone(feature.EnhancingIntegrations)
		result = append(result, feature)
	}
	return result
}

// refreshFeatures recomputes availability and returns an update event when
// it changed since the last refresh. Must be called with r.mu held.
func (r *Registry) refreshFeatures(at time.Time) shared.DomainEvent {
	current := make(map[string]struct{}, len(r.available))
	available := make([]string, 0)
	added := make([]string, 0)
	for _, id := range r.featureOrder {
		if !r.features[id].IsAvailable(r.isEnabled) {
			continue
		}
		current[id] = struct{}{}
		available = append(available, id)
		if _, was := r.available[id]; !was {
			added = append(added, id)
		}
	}
	removed := make([]string, 0)
	for id := range r.available {
		if _, still := current[id]; !still {
			removed = append(removed, id)
		}
	}
	r.available = current

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	slices.Sort(removed)
	return integration.NewEnhancedFeaturesUpdatedEvent(available, added, removed, at)
}

func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
