package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel lifecycle events are forwarded to
const DefaultChannel = "integrations:events"

// Envelope is the wire form of a forwarded event
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateID   string          `json:"aggregate_id,omitempty"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

// RedisForwarder publishes lifecycle events to a Redis Pub/Sub channel so
// other processes can invalidate their caches
type RedisForwarder struct {
	client     *redis.Client
	serializer *EventSerializer
	channel    string
	source     string
	logger     *zap.Logger
}

// RedisForwarderOption is a functional option for configuring the forwarder
type RedisForwarderOption func(*RedisForwarder)

// WithForwarderChannel sets the Pub/Sub channel name
func WithForwarderChannel(channel string) RedisForwarderOption {
	return func(f *RedisForwarder) {
		if channel != "" {
			f.channel = channel
		}
	}
}

// WithForwarderSource sets the source tag stamped on every envelope
func WithForwarderSource(source string) RedisForwarderOption {
	return func(f *RedisForwarder) {
		f.source = source
	}
}

// WithForwarderLogger sets the logger for the forwarder
func WithForwarderLogger(logger *zap.Logger) RedisForwarderOption {
	return func(f *RedisForwarder) {
		f.logger = logger
	}
}

// NewRedisForwarder creates a forwarder on an existing client.
// The caller retains ownership of the client.
func NewRedisForwarder(client *redis.Client, opts ...RedisForwarderOption) *RedisForwarder {
	f := &RedisForwarder{
		client:     client,
		serializer: NewIntegrationEventSerializer(),
		channel:    DefaultChannel,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Channel returns the channel events are published to
func (f *RedisForwarder) Channel() string {
	return f.channel
}

// Handle wraps the event in an Envelope and publishes it
func (f *RedisForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := f.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	data, err := json.Marshal(Envelope{
		ID:            event.EventID().String(),
		Type:          event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		OccurredAt:    event.OccurredAt(),
		Source:        f.source,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		f.logger.Error("Failed to forward integration event",
			zap.String("channel", f.channel),
			zap.String("event_type", event.EventType()),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	f.logger.Debug("Forwarded integration event",
		zap.String("channel", f.channel),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID()))
	return nil
}

// EventTypes subscribes to every lifecycle event
func (f *RedisForwarder) EventTypes() []string {
	return integration.AllEventTypes()
}

var _ shared.EventHandler = (*RedisForwarder)(nil)
