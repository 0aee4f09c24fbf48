package validation

import (
	"strings"

	"github.com/bizhub/integrations/internal/domain/integration"
)

// Normalize canonicalizes a definition in place: identifiers and categories are
// trimmed and lower-cased, free text is trimmed, repeated capabilities and
// edges collapse to their first occurrence, and schema defaults fill missing
// config values.
func Normalize(in *integration.Integration) {
	in.ID = canonicalID(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Description = strings.TrimSpace(in.Description)
	in.Version = strings.TrimSpace(in.Version)
	in.Provider = strings.TrimSpace(in.Provider)
	in.HealthCheckURL = strings.TrimSpace(in.HealthCheckURL)
	in.Category = integration.Category(canonicalID(string(in.Category)))
	if in.DisplayName == "" {
		in.DisplayName = in.Name
	}

	in.Capabilities = dedupe(in.Capabilities, func(c integration.Capability) integration.Capability {
		return integration.Capability(canonicalID(string(c)))
	})
	in.Conflicts = dedupe(in.Conflicts, canonicalID)
	in.Enhances = dedupe(in.Enhances, canonicalID)
	in.SupportedBusinessSizes = dedupe(in.SupportedBusinessSizes, func(s integration.BusinessSize) integration.BusinessSize {
		return integration.BusinessSize(canonicalID(string(s)))
	})

	deps := in.Dependencies[:0:0]
	seen := make(map[string]int, len(in.Dependencies))
	for _, dep := range in.Dependencies {
		dep.IntegrationID = canonicalID(dep.IntegrationID)
		if i, ok := seen[dep.IntegrationID]; ok {
			// a repeated edge keeps its position; required wins
			deps[i].Required = deps[i].Required || dep.Required
			continue
		}
		seen[dep.IntegrationID] = len(deps)
		deps = append(deps, dep)
	}
	if in.Dependencies != nil {
		in.Dependencies = deps
	}

	for i := range in.ConfigSchema {
		field := &in.ConfigSchema[i]
		field.Key = strings.TrimSpace(field.Key)
		field.Label = strings.TrimSpace(field.Label)
		field.Type = integration.FieldType(canonicalID(string(field.Type)))
		if field.Label == "" {
			field.Label = field.Key
		}
	}
	applyDefaults(in)
}

func applyDefaults(in *integration.Integration) {
	for _, field := range in.ConfigSchema {
		if field.Default == nil {
			continue
		}
		if _, ok := in.Config[field.Key]; ok {
			continue
		}
		if in.Config == nil {
			in.Config = make(map[string]any, len(in.ConfigSchema))
		}
		in.Config[field.Key] = field.Default
	}
}

func canonicalID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func dedupe[T comparable](items []T, canon func(T) T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, 0, len(items))
	seen := make(map[T]struct{}, len(items))
	for _, item := range items {
		item = canon(item)
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
