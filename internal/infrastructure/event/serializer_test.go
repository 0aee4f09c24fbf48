package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizhub/integrations/internal/domain/integration"
)

func TestEventSerializer_DecodesEveryLifecycleEvent(t *testing.T) {
	serializer := NewIntegrationEventSerializer()
	for _, eventType := range integration.AllEventTypes() {
		_, err := serializer.Deserialize(eventType, []byte(`{}`))
		assert.NoError(t, err, eventType)
	}
}

func TestEventSerializer_Deserialize_UnknownType(t *testing.T) {
	_, err := NewIntegrationEventSerializer().Deserialize("order:created", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestEventSerializer_Deserialize_InvalidJSON(t *testing.T) {
	_, err := NewIntegrationEventSerializer().Deserialize(integration.EventTypeIntegrationEnabled, []byte(`invalid json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestEventSerializer_RestoresTypedEvent(t *testing.T) {
	serializer := NewIntegrationEventSerializer()

	at := time.Now().UTC().Truncate(time.Second)
	original := integration.NewIntegrationEnabledEvent("core", "crm", at)

	data, err := serializer.Serialize(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"aggregate_id":"core"`)

	decoded, err := serializer.Deserialize(integration.EventTypeIntegrationEnabled, data)
	require.NoError(t, err)

	event, ok := decoded.(*integration.IntegrationEnabledEvent)
	require.True(t, ok)
	assert.Equal(t, original.EventID(), event.EventID())
	assert.Equal(t, "core", event.IntegrationID)
	assert.Equal(t, "crm", event.TriggeredBy)
	assert.True(t, event.IsCascade())
	assert.True(t, at.Equal(event.OccurredAt()))
}
