package event

import (
	"context"

	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"go.uber.org/zap"
)

// LoggingHandler writes one structured log line per lifecycle event
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a logging handler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingHandler{logger: logger.Named("integration-events")}
}

// Handle logs the event with fields specific to its variant
func (h *LoggingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	}

	switch e := event.(type) {
	case *integration.IntegrationRegisteredEvent:
		fields = append(fields,
			zap.String("integration_id", e.IntegrationID),
			zap.String("version", e.Version),
			zap.String("category", e.Category.String()),
		)
	case *integration.IntegrationUnregisteredEvent:
		fields = append(fields, zap.String("integration_id", e.IntegrationID))
	case *integration.IntegrationEnabledEvent:
		fields = append(fields,
			zap.String("integration_id", e.IntegrationID),
			zap.Bool("cascade", e.IsCascade()),
			zap.String("triggered_by", e.TriggeredBy),
		)
	case *integration.IntegrationDisabledEvent:
		fields = append(fields, zap.String("integration_id", e.IntegrationID))
	case *integration.HealthCheckedEvent:
		fields = append(fields,
			zap.String("integration_id", e.IntegrationID),
			zap.String("health_status", e.Status.String()),
			zap.Int("open_issues", e.OpenIssues),
		)
		if e.Error != "" {
			h.logger.Warn("integration health check failed", append(fields, zap.String("error", e.Error))...)
			return nil
		}
	case *integration.EnhancedFeaturesUpdatedEvent:
		fields = append(fields,
			zap.Strings("available", e.Available),
			zap.Strings("added", e.Added),
			zap.Strings("removed", e.Removed),
		)
	case *integration.ContextChangedEvent:
		fields = append(fields,
			zap.String("user_id", e.UserID),
			zap.String("business_id", e.BusinessID),
		)
	default:
		if id := event.AggregateID(); id != "" {
			fields = append(fields, zap.String("aggregate_id", id))
		}
	}

	h.logger.Info("integration event", fields...)
	return nil
}

// EventTypes subscribes to every lifecycle event
func (h *LoggingHandler) EventTypes() []string {
	return integration.AllEventTypes()
}

var _ shared.EventHandler = (*LoggingHandler)(nil)
