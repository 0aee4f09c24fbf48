package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisForwarder_Handle_PublishesEnvelope(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "test:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	forwarder := NewRedisForwarder(client,
		WithForwarderChannel("test:events"),
		WithForwarderSource("node-a"),
		WithForwarderLogger(zap.NewNop()),
	)
	assert.Equal(t, "test:events", forwarder.Channel())

	event := integration.NewIntegrationDisabledEvent("crm", time.Now())
	require.NoError(t, forwarder.Handle(ctx, event))

	select {
	case msg := <-sub.Channel():
		var envelope Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
		assert.Equal(t, event.EventID().String(), envelope.ID)
		assert.Equal(t, integration.EventTypeIntegrationDisabled, envelope.Type)
		assert.Equal(t, "crm", envelope.AggregateID)
		assert.Equal(t, "node-a", envelope.Source)
		assert.Contains(t, string(envelope.Payload), `"integration_id":"crm"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}

func TestRedisForwarder_Handle_ConnectionError(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	forwarder := NewRedisForwarder(client)
	err := forwarder.Handle(context.Background(), integration.NewIntegrationDisabledEvent("crm", time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestRedisRelay_Decode(t *testing.T) {
	_, client := newTestRedis(t)
	forwarderFor := func(source string) []byte {
		event := integration.NewIntegrationRegisteredEvent(&integration.Integration{ID: "crm", Name: "CRM", Version: "1.0.0"}, time.Now())
		payload, err := NewIntegrationEventSerializer().Serialize(event)
		require.NoError(t, err)
		data, err := json.Marshal(Envelope{ID: event.EventID().String(), Type: event.EventType(), Source: source, Payload: payload})
		require.NoError(t, err)
		return data
	}

	relay := NewRedisRelay(client, "", "node-a", nil)

	own, err := relay.Decode(forwarderFor("node-a"))
	require.NoError(t, err)
	assert.Nil(t, own)

	remote, err := relay.Decode(forwarderFor("node-b"))
	require.NoError(t, err)
	registered, ok := remote.(*integration.IntegrationRegisteredEvent)
	require.True(t, ok)
	assert.Equal(t, "crm", registered.IntegrationID)

	_, err = relay.Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestRedisRelay_Run_DeliversRemoteEvents(t *testing.T) {
	_, client := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan shared.DomainEvent, 1)
	handler := NewFuncHandler(func(_ context.Context, event shared.DomainEvent) error {
		received <- event
		return nil
	})

	relay := NewRedisRelay(client, "test:relay", "node-a", zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, handler) }()

	forwarder := NewRedisForwarder(client, WithForwarderChannel("test:relay"), WithForwarderSource("node-b"))
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, "test:relay").Result()
		return err == nil && n["test:relay"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, forwarder.Handle(ctx, integration.NewIntegrationEnabledEvent("crm", "crm", time.Now())))

	select {
	case event := <-received:
		assert.Equal(t, integration.EventTypeIntegrationEnabled, event.EventType())
		assert.Equal(t, "crm", event.AggregateID())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
