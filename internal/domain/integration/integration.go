package integration

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/bizhub/integrations/internal/domain/dependency"
)

// Dependency is an edge owned by the depending integration
type Dependency = dependency.Dependency

// Hook is a lifecycle callback. It receives a snapshot of the integration and
// must not call back into the registry.
type Hook func(ctx context.Context, in *Integration) error

// Hooks are the optional lifecycle callbacks of an integration
type Hooks struct {
	OnInstall   Hook
	OnUninstall Hook
	OnEnable    Hook
	OnDisable   Hook
}

// Metrics are usage counters reported by the integration itself
type Metrics struct {
	SuccessRate         float64 `json:"success_rate" toml:"success_rate" validate:"gte=0,lte=100"`
	AverageResponseTime float64 `json:"average_response_time_ms" toml:"average_response_time_ms" validate:"gte=0"`
	Requests            int64   `json:"requests" toml:"requests" validate:"gte=0"`
}

// Integration is a pluggable third-party feature tracked by the registry
type Integration struct {
	ID          string `json:"id" toml:"id" validate:"required,max=64"`
	Name        string `json:"name" toml:"name" validate:"required,max=100"`
	DisplayName string `json:"display_name" toml:"display_name" validate:"max=200"`
	Description string `json:"description" toml:"description"`
	Version     string `json:"version" toml:"version" validate:"required"`
	Provider    string `json:"provider" toml:"provider" validate:"required"`

	Category     Category     `json:"category" toml:"category" validate:"required"`
	Capabilities []Capability `json:"capabilities" toml:"capabilities"`
	Status       Status       `json:"status" toml:"status"`
	IsEnabled    bool         `json:"is_enabled" toml:"enabled"`
	IsRequired   bool         `json:"is_required" toml:"required"`

	Dependencies []Dependency `json:"dependencies" toml:"dependencies" validate:"dive"`
	Conflicts    []string     `json:"conflicts" toml:"conflicts"`
	Enhances     []string     `json:"enhances" toml:"enhances"`

	SupportedBusinessSizes []BusinessSize `json:"supported_business_sizes,omitempty" toml:"supported_business_sizes"`
	ConfigSchema           []ConfigField  `json:"config_schema,omitempty" toml:"config_schema" validate:"dive"`
	Config                 map[string]any `json:"config,omitempty" toml:"config"`
	HealthCheckURL         string         `json:"health_check_url,omitempty" toml:"health_check_url" validate:"omitempty,url"`

	Health  Health  `json:"health" toml:"-"`
	Metrics Metrics `json:"metrics" toml:"metrics"`
	Hooks   Hooks   `json:"-" toml:"-"`

	CreatedAt time.Time `json:"created_at" toml:"-"`
	UpdatedAt time.Time `json:"updated_at" toml:"-"`
}

// HasCapability reports whether the integration advertises c
func (in *Integration) HasCapability(c Capability) bool {
	return slices.Contains(in.Capabilities, c)
}

// ConflictsWith reports whether the integration lists id as a conflict
func (in *Integration) ConflictsWith(id string) bool {
	return slices.Contains(in.Conflicts, id)
}

// SupportsBusinessSize reports whether size is supported. An empty list supports every size.
func (in *Integration) SupportsBusinessSize(size BusinessSize) bool {
	return len(in.SupportedBusinessSizes) == 0 || slices.Contains(in.SupportedBusinessSizes, size)
}

// MarkEnabled transitions the integration to active
func (in *Integration) MarkEnabled(at time.Time) {
	in.IsEnabled = true
	in.Status = StatusActive
	in.UpdatedAt = at
}

// MarkDisabled transitions the integration to inactive
func (in *Integration) MarkDisabled(at time.Time) {
	in.IsEnabled = false
	in.Status = StatusInactive
	in.UpdatedAt = at
}

// Clone returns a deep copy. Hook functions are shared.
func (in *Integration) Clone() *Integration {
	if in == nil {
		return nil
	}
	out := *in
	out.Capabilities = slices.Clone(in.Capabilities)
	out.Dependencies = slices.Clone(in.Dependencies)
	out.Conflicts = slices.Clone(in.Conflicts)
	out.Enhances = slices.Clone(in.Enhances)
	out.SupportedBusinessSizes = slices.Clone(in.SupportedBusinessSizes)
	out.ConfigSchema = slices.Clone(in.ConfigSchema)
	for i := range out.ConfigSchema {
		out.ConfigSchema[i].Options = slices.Clone(in.ConfigSchema[i].Options)
	}
	out.Config = maps.Clone(in.Config)
	out.Health = in.Health.clone()
	return &out
}
