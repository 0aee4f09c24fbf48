package integration

import (
	"fmt"

	"github.com/bizhub/integrations/internal/domain/dependency"
	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
)

// GetIntegration returns a copy of the integration with id
func (r *Registry) GetIntegration(id string) (*integration.Integration, error) {
	id = canonicalID(id)
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.integrations[id]
	if !ok {
		return nil, fmt.Errorf("%w: integration %s", shared.ErrNotFound, id)
	}
	return in.Clone(), nil
}

// GetAllIntegrations returns copies of every integration in registration order
func (r *Registry) GetAllIntegrations() []*integration.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.order, nil)
}

// GetIntegrationsByCategory returns copies of the integrations in category
func (r *Registry) GetIntegrationsByCategory(category integration.Category) []*integration.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.categories[category], nil)
}

// GetEnabledIntegrations returns copies of the enabled integrations
func (r *Registry) GetEnabledIntegrations() []*integration.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.order, func(in *integration.Integration) bool { return in.IsEnabled })
}

// SearchIntegrations returns the integrations passing every filter. The
// business size filter only applies while a context with a business size is set.
func (r *Registry) SearchIntegrations(filter integration.SearchFilter) []*integration.Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matcher := filter.NewMatcher(r.context)
	return r.collect(r.order, matcher.Match)
}

// collect must be called with r.mu held for reading
func (r *Registry) collect(ids []string, keep func(*integration.Integration) bool) []*integration.Integration {
	result := make([]*integration.Integration, 0, len(ids))
	for _, id := range ids {
		in, ok := r.integrations[id]
		if !ok || (keep != nil && !keep(in)) {
			continue
		}
		result = append(result, in.Clone())
	}
	return result
}

// RegistryState is a lightweight summary for diagnostics
type RegistryState struct {
	Total                     int                          `json:"total"`
	Enabled                   int                          `json:"enabled"`
	ByCategory                map[integration.Category]int `json:"by_category"`
	ByStatus                  map[integration.Status]int   `json:"by_status"`
	ByHealth                  map[string]int               `json:"by_health"`
	ConditionalContent        int                          `json:"conditional_content"`
	EnhancedFeatures          int                          `json:"enhanced_features"`
	AvailableEnhancedFeatures int                          `json:"available_enhanced_features"`
	HasContext                bool                         `json:"has_context"`
}

// GetRegistryState summarizes the registry
func (r *Registry) GetRegistryState() RegistryState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := RegistryState{
		Total:            len(r.integrations),
		ByCategory:       make(map[integration.Category]int, len(r.categories)),
		ByStatus:         make(map[integration.Status]int),
		ByHealth:         make(map[string]int),
		EnhancedFeatures: len(r.features),
		HasContext:       r.context != nil,
	}
	for category, ids := range r.categories {
		state.ByCategory[category] = len(ids)
	}
	for _, in := range r.integrations {
		if in.IsEnabled {
			state.Enabled++
		}
		state.ByStatus[in.Status]++
		state.ByHealth[in.Health.Status.String()]++
	}
	for _, items := range r.content {
		state.ConditionalContent += len(items)
	}
	for _, feature := range r.features {
		if feature.IsAvailable(r.isEnabled) {
			state.AvailableEnhancedFeatures++
		}
	}
	return state
}

// ---------------------------------------------------------------------------
// Dependency queries
// ---------------------------------------------------------------------------

// GetMissingDependencies returns the required dependencies of id not enabled
func (r *Registry) GetMissingDependencies(id string) []integration.Dependency {
	return r.graph.GetMissingDependencies(canonicalID(id))
}

// GetDependents returns every registered integration that depends on id
func (r *Registry) GetDependents(id string) []string {
	return r.graph.GetDependents(canonicalID(id))
}

// GetEnabledDependents returns the enabled integrations that depend on id
func (r *Registry) GetEnabledDependents(id string) []string {
	return r.graph.GetEnabledDependents(canonicalID(id))
}

// GetInstallationOrder orders ids and their required dependencies so that
// dependencies come first. A required cycle fails with dependency.ErrCircularDependency.
func (r *Registry) GetInstallationOrder(ids []string) ([]string, error) {
	return r.graph.GetInstallationOrder(canonicalIDs(ids))
}

// GetRemovalOrder is the reverse of GetInstallationOrder
func (r *Registry) GetRemovalOrder(ids []string) ([]string, error) {
	return r.graph.GetRemovalOrder(canonicalIDs(ids))
}

// DetectCircularDependencies reports every required cycle in the graph
func (r *Registry) DetectCircularDependencies() [][]string {
	return r.graph.DetectCircularDependencies()
}

// GetDependencyTree materializes what id depends on, to the configured depth
func (r *Registry) GetDependencyTree(id string) *dependency.TreeNode {
	return r.graph.GetDependencyTree(canonicalID(id), r.treeDepth)
}

// GetDependentsTree materializes what depends on id, to the configured depth
func (r *Registry) GetDependentsTree(id string) *dependency.TreeNode {
	return r.graph.GetDependentsTree(canonicalID(id), r.treeDepth)
}

// AnalyzeDisableImpact reports what disabling id would affect. CanDisable is
// the same gate DisableIntegration applies, apart from required integrations.
func (r *Registry) AnalyzeDisableImpact(id string) dependency.DisableImpact {
	return r.graph.AnalyzeDisableImpact(canonicalID(id))
}

// AnalyzeEnableRequirements reports the dependencies id is missing
func (r *Registry) AnalyzeEnableRequirements(id string) dependency.EnableRequirements {
	return r.graph.AnalyzeEnableRequirements(canonicalID(id))
}

// ValidateDependencyGraph runs the graph diagnostics
func (r *Registry) ValidateDependencyGraph() []dependency.ValidationIssue {
	return r.graph.ValidateDependencyGraph()
}

func canonicalIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = canonicalID(id)
	}
	return out
}
