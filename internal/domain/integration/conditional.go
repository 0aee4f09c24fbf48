package integration

import (
	"fmt"
	"strings"

	"github.com/bizhub/integrations/internal/domain/shared"
)

// ConditionType selects how a Condition is evaluated
type ConditionType string

const (
	ConditionIntegrationEnabled ConditionType = "integration_enabled"
	ConditionUserPermission     ConditionType = "user_permission"
	ConditionBusinessPlan       ConditionType = "business_plan"
	ConditionCustom             ConditionType = "custom"
)

// IsValid checks if the condition type is valid
func (t ConditionType) IsValid() bool {
	switch t {
	case ConditionIntegrationEnabled, ConditionUserPermission, ConditionBusinessPlan, ConditionCustom:
		return true
	default:
		return false
	}
}

// EnabledLookup reports whether an integration is currently enabled
type EnabledLookup func(id string) bool

// Condition is one predicate of a ConditionalContent item.
// CustomCheck is only consulted for ConditionCustom.
type Condition struct {
	Type        ConditionType           `json:"type" toml:"type"`
	Value       string                  `json:"value,omitempty" toml:"value"`
	CustomCheck func(ctx *Context) bool `json:"-" toml:"-"`
}

// IntegrationEnabled holds when the integration id is enabled
func IntegrationEnabled(id string) Condition {
	return Condition{Type: ConditionIntegrationEnabled, Value: id}
}

// UserPermission holds when the current user has permission
func UserPermission(permission string) Condition {
	return Condition{Type: ConditionUserPermission, Value: permission}
}

// BusinessPlan holds when the current business is on plan, compared case-insensitively
func BusinessPlan(plan string) Condition {
	return Condition{Type: ConditionBusinessPlan, Value: plan}
}

// Custom holds when check returns true
func Custom(check func(ctx *Context) bool) Condition {
	return Condition{Type: ConditionCustom, CustomCheck: check}
}

// Validate checks the condition is well formed
func (c Condition) Validate() error {
	switch c.Type {
	case ConditionIntegrationEnabled, ConditionUserPermission, ConditionBusinessPlan:
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("%w: condition %s requires a value", shared.ErrInvalidInput, c.Type)
		}
	case ConditionCustom:
		if c.CustomCheck == nil {
			return fmt.Errorf("%w: custom condition requires a check function", shared.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown condition type %q", shared.ErrInvalidInput, c.Type)
	}
	return nil
}

// Evaluate reports whether the condition holds. A missing user or business
// fails the conditions that need it.
func (c Condition) Evaluate(ctx *Context, enabled EnabledLookup) bool {
	switch c.Type {
	case ConditionIntegrationEnabled:
		return enabled != nil && enabled(c.Value)
	case ConditionUserPermission:
		return ctx != nil && ctx.User.HasPermission(c.Value)
	case ConditionBusinessPlan:
		return ctx != nil && ctx.Business != nil && strings.EqualFold(ctx.Business.Plan, c.Value)
	case ConditionCustom:
		return c.CustomCheck != nil && c.CustomCheck(ctx)
	default:
		return false
	}
}

// EvaluateConditions reports whether every condition holds
func EvaluateConditions(conditions []Condition, ctx *Context, enabled EnabledLookup) bool {
	for _, condition := range conditions {
		if !condition.Evaluate(ctx, enabled) {
			return false
		}
	}
	return true
}

// ConditionalContent is a payload owned by an integration and exposed only
// while every condition holds
type ConditionalContent struct {
	ID            string      `json:"id" toml:"id"`
	IntegrationID string      `json:"integration_id" toml:"integration_id"`
	Conditions    []Condition `json:"conditions" toml:"conditions"`
	Payload       any         `json:"payload" toml:"payload"`
}

// Validate checks the content item and each of its conditions
func (c ConditionalContent) Validate() error {
	if strings.TrimSpace(c.IntegrationID) == "" {
		return fmt.Errorf("%w: conditional content requires an integration id", shared.ErrInvalidInput)
	}
	for _, condition := range c.Conditions {
		if err := condition.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether the content should be exposed for ctx
func (c ConditionalContent) Matches(ctx *Context, enabled EnabledLookup) bool {
	return EvaluateConditions(c.Conditions, ctx, enabled)
}
