package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs search events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case models.ProgressEvent:
			logEvent = logEvent.
				Str("job_id", payload.JobID).
				Float64("percentage", payload.Percentage).
				Str("message", payload.Message)
		case map[string]interface{}:
			if id, ok := payload["job_id"].(string); ok {
				logEvent = logEvent.Str("job_id", id)
			}
			if st, ok := payload["state"].(string); ok {
				logEvent = logEvent.Str("state", st)
			}
			if e, ok := payload["error"].(string); ok {
				logEvent = logEvent.Str("error", e)
			}
		}

		logEvent.Msg("Event published")
		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventSearchProgress,
		interfaces.EventSearchFinished,
	}

	for _, eventType := range eventTypes {
		if _, err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Info().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
