package dto

import (
	"maps"
	"time"

	"github.com/bizhub/integrations/internal/domain/dependency"
	"github.com/bizhub/integrations/internal/domain/integration"
)

// SecretMask replaces secret configuration values in responses
const SecretMask = "********"

// ListIntegrationsQuery are the filters accepted by the list endpoint
type ListIntegrationsQuery struct {
	Category          []string `form:"category" binding:"omitempty,dive,category"`
	Status            []string `form:"status" binding:"omitempty,dive,oneof=active inactive error installing"`
	Capability        []string `form:"capability"`
	Search            string   `form:"search" binding:"max=100"`
	Enabled           *bool    `form:"enabled"`
	MatchBusinessSize bool     `form:"match_business_size"`
}

// Filter converts the query into a registry search filter
func (q ListIntegrationsQuery) Filter() integration.SearchFilter {
	filter := integration.SearchFilter{Search: q.Search, MatchBusinessSize: q.MatchBusinessSize}
	for _, c := range q.Category {
		filter.Categories = append(filter.Categories, integration.Category(c))
	}
	for _, s := range q.Status {
		filter.Statuses = append(filter.Statuses, integration.Status(s))
	}
	for _, c := range q.Capability {
		filter.Capabilities = append(filter.Capabilities, integration.Capability(c))
	}
	return filter
}

// InstallOrderRequest asks for the installation order of a set of integrations
type InstallOrderRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100,dive,required,max=64"`
}

// HealthCheckRequest narrows a health sweep to one integration
type HealthCheckRequest struct {
	ID string `json:"id" binding:"omitempty,max=64"`
}

// DependencyResponse is one declared dependency
type DependencyResponse struct {
	IntegrationID string `json:"integration_id"`
	Required      bool   `json:"required"`
}

// IntegrationResponse is the API view of an integration. Secret
// configuration values are masked.
type IntegrationResponse struct {
	ID                     string                     `json:"id"`
	Name                   string                     `json:"name"`
	DisplayName            string                     `json:"display_name"`
	Description            string                     `json:"description,omitempty"`
	Version                string                     `json:"version"`
	Provider               string                     `json:"provider"`
	Category               integration.Category       `json:"category"`
	Capabilities           []integration.Capability   `json:"capabilities"`
	Status                 integration.Status         `json:"status"`
	IsEnabled              bool                       `json:"is_enabled"`
	IsRequired             bool                       `json:"is_required"`
	Dependencies           []DependencyResponse       `json:"dependencies"`
	Conflicts              []string                   `json:"conflicts"`
	Enhances               []string                   `json:"enhances"`
	SupportedBusinessSizes []integration.BusinessSize `json:"supported_business_sizes,omitempty"`
	ConfigSchema           []integration.ConfigField  `json:"config_schema,omitempty"`
	Config                 map[string]any             `json:"config,omitempty"`
	Health                 integration.Health         `json:"health"`
	Metrics                integration.Metrics        `json:"metrics"`
	CreatedAt              time.Time                  `json:"created_at"`
	UpdatedAt              time.Time                  `json:"updated_at"`
}

// ToIntegrationResponse converts a registry snapshot into its API view
func ToIntegrationResponse(in *integration.Integration) IntegrationResponse {
	resp := IntegrationResponse{
		ID:                     in.ID,
		Name:                   in.Name,
		DisplayName:            in.DisplayName,
		Description:            in.Description,
		Version:                in.Version,
		Provider:               in.Provider,
		Category:               in.Category,
		Capabilities:           nonNil(in.Capabilities),
		Status:                 in.Status,
		IsEnabled:              in.IsEnabled,
		IsRequired:             in.IsRequired,
		Dependencies:           make([]DependencyResponse, 0, len(in.Dependencies)),
		Conflicts:              nonNil(in.Conflicts),
		Enhances:               nonNil(in.Enhances),
		SupportedBusinessSizes: in.SupportedBusinessSizes,
		ConfigSchema:           in.ConfigSchema,
		Config:                 maskSecrets(in.ConfigSchema, in.Config),
		Health:                 in.Health,
		Metrics:                in.Metrics,
		CreatedAt:              in.CreatedAt,
		UpdatedAt:              in.UpdatedAt,
	}
	for _, dep := range in.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyResponse{
			IntegrationID: dep.IntegrationID,
			Required:      dep.Required,
		})
	}
	return resp
}

// ToIntegrationResponses converts a list of snapshots
func ToIntegrationResponses(items []*integration.Integration) []IntegrationResponse {
	out := make([]IntegrationResponse, 0, len(items))
	for _, in := range items {
		out = append(out, ToIntegrationResponse(in))
	}
	return out
}

func maskSecrets(schema []integration.ConfigField, config map[string]any) map[string]any {
	if config == nil {
		return nil
	}
	out := maps.Clone(config)
	for _, field := range schema {
		if field.Type != integration.FieldTypeSecret {
			continue
		}
		if _, ok := out[field.Key]; ok {
			out[field.Key] = SecretMask
		}
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return make([]T, 0)
	}
	return s
}

// ImpactResponse combines both dependency analyses for one integration
type ImpactResponse struct {
	IntegrationID string                        `json:"integration_id"`
	Disable       dependency.DisableImpact      `json:"disable"`
	Enable        dependency.EnableRequirements `json:"enable"`
}

// TreeResponse holds both directions of the dependency graph around one integration
type TreeResponse struct {
	Dependencies *dependency.TreeNode `json:"dependencies"`
	Dependents   *dependency.TreeNode `json:"dependents"`
}

// InstallOrderResponse is the computed installation and removal order
type InstallOrderResponse struct {
	InstallOrder []string `json:"install_order"`
	RemovalOrder []string `json:"removal_order"`
}

// ValidationReportResponse is the result of a graph validation run
type ValidationReportResponse struct {
	Valid  bool                         `json:"valid"`
	Cycles [][]string                   `json:"cycles"`
	Issues []dependency.ValidationIssue `json:"issues"`
}
