package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay receives envelopes published by RedisForwarder in other
// processes and hands the decoded events to a local handler.
// Envelopes stamped with the relay's own source are skipped.
type RedisRelay struct {
	client     *redis.Client
	serializer *EventSerializer
	channel    string
	source     string
	logger     *zap.Logger
	running    atomic.Bool
}

// NewRedisRelay creates a relay listening on channel
func NewRedisRelay(client *redis.Client, channel, source string, logger *zap.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:     client,
		serializer: NewIntegrationEventSerializer(),
		channel:    channel,
		source:     source,
		logger:     logger,
	}
}

// Run subscribes and delivers events to handler until ctx is cancelled.
// It blocks and should be called in a goroutine.
func (r *RedisRelay) Run(ctx context.Context, handler shared.EventHandler) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("relay already running")
	}
	defer r.running.Store(false)

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	r.logger.Info("Subscribed to integration event channel", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Integration event relay stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Integration event channel closed")
				return nil
			}
			r.deliver(ctx, handler, msg.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, handler shared.EventHandler, raw string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic in relayed event handler", zap.Any("panic", rec))
		}
	}()

	event, err := r.Decode([]byte(raw))
	if err != nil {
		r.logger.Error("Failed to decode relayed event", zap.String("payload", raw), zap.Error(err))
		return
	}
	if event == nil {
		return
	}
	if err := handler.Handle(ctx, event); err != nil {
		r.logger.Error("Relayed event handler failed",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

// Decode turns an envelope into a typed event. It returns nil, nil for
// envelopes originating from this relay's own source.
func (r *RedisRelay) Decode(data []byte) (shared.DomainEvent, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if r.source != "" && envelope.Source == r.source {
		return nil, nil
	}
	return r.serializer.Deserialize(envelope.Type, envelope.Payload)
}
