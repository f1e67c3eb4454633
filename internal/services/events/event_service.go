package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
)

// ErrServiceClosed is returned when publishing or subscribing after Close
var ErrServiceClosed = errors.New("event service closed")

type subscription struct {
	id      uint64
	handler interfaces.EventHandler
}

// Service implements EventService interface with pub/sub pattern
type Service struct {
	subscribers map[interfaces.EventType][]subscription
	nextID      uint64
	closed      bool
	wg          sync.WaitGroup
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		subscribers: make(map[interfaces.EventType][]subscription),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type. The returned function
// removes it and is safe to call more than once.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) (func(), error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServiceClosed
	}

	s.nextID++
	id := s.nextID
	s.subscribers[eventType] = append(s.subscribers[eventType], subscription{id: id, handler: handler})

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(eventType, id) })
	}, nil
}

func (s *Service) unsubscribe(eventType interfaces.EventType, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscribers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			// copy so snapshots held by in-flight publishes stay intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			s.subscribers[eventType] = next
			s.logger.Debug().
				Str("event_type", string(eventType)).
				Msg("Event handler unsubscribed")
			return
		}
	}
}

func (s *Service) handlers(eventType interfaces.EventType) ([]subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrServiceClosed
	}
	return s.subscribers[eventType], nil
}

// Publish hands the event to all subscribers on a background goroutine.
// Handlers of one event run in subscription order.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrServiceClosed
	}
	subs := s.subscribers[event.Type]
	if len(subs) == 0 {
		s.mu.RUnlock()
		return nil
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.wg.Done()
		for _, sub := range subs {
			s.call(ctx, sub, event)
		}
	}()

	return nil
}

// PublishSync sends an event to all subscribers and waits for them
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	subs, err := s.handlers(event.Type)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		if err := s.call(ctx, sub, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("event handlers failed: %d errors: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (s *Service) call(ctx context.Context, sub subscription, event interfaces.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
			s.logger.Error().Str("event_type", string(event.Type)).Str("panic", fmt.Sprint(r)).Msg("Event handler panicked")
		}
	}()

	if err = sub.handler(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
	}
	return err
}

// Close drops all subscribers and waits for in-flight publishes
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subscribers = make(map[interfaces.EventType][]subscription)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Event service closed")
	return nil
}
