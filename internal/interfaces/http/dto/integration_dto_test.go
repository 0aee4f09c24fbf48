package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizhub/integrations/internal/domain/integration"
)

func TestToIntegrationResponse_MasksSecrets(t *testing.T) {
	in := &integration.Integration{
		ID:       "stripe",
		Name:     "Stripe",
		Category: integration.CategoryPayments,
		Dependencies: []integration.Dependency{
			{IntegrationID: "core", Required: true},
		},
		ConfigSchema: []integration.ConfigField{
			{Key: "api_key", Type: integration.FieldTypeSecret},
			{Key: "mode", Type: integration.FieldTypeSelect, Options: []string{"live", "test"}},
		},
		Config: map[string]any{"api_key": "sk_live_123", "mode": "live"},
	}

	resp := ToIntegrationResponse(in)

	assert.Equal(t, SecretMask, resp.Config["api_key"])
	assert.Equal(t, "live", resp.Config["mode"])
	assert.Equal(t, "sk_live_123", in.Config["api_key"], "source must not be modified")
	require.Len(t, resp.Dependencies, 1)
	assert.Equal(t, DependencyResponse{IntegrationID: "core", Required: true}, resp.Dependencies[0])
	assert.NotNil(t, resp.Capabilities)
	assert.NotNil(t, resp.Conflicts)
	assert.NotNil(t, resp.Enhances)
}

func TestListIntegrationsQuery_Filter(t *testing.T) {
	q := ListIntegrationsQuery{
		Category:   []string{"payments"},
		Status:     []string{"active"},
		Capability: []string{"refunds"},
		Search:     "stripe",
	}

	f := q.Filter()
	assert.Equal(t, []integration.Category{integration.CategoryPayments}, f.Categories)
	assert.Equal(t, []integration.Status{integration.StatusActive}, f.Statuses)
	assert.Equal(t, []integration.Capability{"refunds"}, f.Capabilities)
	assert.Equal(t, "stripe", f.Search)
	assert.True(t, ListIntegrationsQuery{}.Filter().IsEmpty())
}
