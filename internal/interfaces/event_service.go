package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	// EventSearchProgress carries a models.ProgressEvent for one job
	EventSearchProgress EventType = "search_progress"
	// EventSearchFinished is published once a job reaches a terminal state
	EventSearchFinished EventType = "search_finished"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe registers handler and returns a function that removes it
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func(), err error)

	// Publish an event to all subscribers without waiting
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
