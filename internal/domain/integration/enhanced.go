package integration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bizhub/integrations/internal/domain/shared"
)

// EnhancedFeature is a composite feature exposed only while its base
// integration and every enhancing integration are enabled
type EnhancedFeature struct {
	ID                    string   `json:"id" toml:"id"`
	BaseIntegration       string   `json:"base_integration" toml:"base_integration"`
	EnhancingIntegrations []string `json:"enhancing_integrations" toml:"enhancing_integrations"`
	Name                  string   `json:"name" toml:"name"`
	Description           string   `json:"description" toml:"description"`
}

// Validate checks the feature is well formed
func (f EnhancedFeature) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: enhanced feature requires an id", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(f.BaseIntegration) == "" {
		return fmt.Errorf("%w: enhanced feature %s requires a base integration", shared.ErrInvalidInput, f.ID)
	}
	if len(f.EnhancingIntegrations) == 0 {
		return fmt.Errorf("%w: enhanced feature %s requires at least one enhancing integration", shared.ErrInvalidInput, f.ID)
	}
	return nil
}

// IsAvailable reports whether the base and all enhancers are enabled
func (f EnhancedFeature) IsAvailable(enabled EnabledLookup) bool {
	if enabled == nil || !enabled(f.BaseIntegration) {
		return false
	}
	for _, id := range f.EnhancingIntegrations {
		if !enabled(id) {
			return false
		}
	}
	return true
}

// Involves reports whether id is the base or one of the enhancers
func (f EnhancedFeature) Involves(id string) bool {
	return f.BaseIntegration == id || slices.Contains(f.EnhancingIntegrations, id)
}
