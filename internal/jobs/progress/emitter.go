// Package progress turns pipeline steps into ordered, monotonic progress events.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

// MaxBeforeDone is the highest percentage reported before the done sentinel
const MaxBeforeDone = 0.99

// DefaultBuffer is the event channel capacity used when none is given
const DefaultBuffer = 512

// Emitter records progress for one job. It is safe for concurrent use.
type Emitter struct {
	mu       sync.Mutex
	jobID    string
	progress float64
	logs     []string
	events   chan models.ProgressEvent
	closed   bool
	dropped  int

	bus    interfaces.EventService
	logger arbor.ILogger
	now    func() time.Time
}

// Option configures an Emitter
type Option func(*Emitter)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// WithEventService mirrors every event onto the event bus
func WithEventService(bus interfaces.EventService) Option {
	return func(e *Emitter) { e.bus = bus }
}

// NewEmitter creates an emitter whose log continues from seedLogs
func NewEmitter(jobID string, seedLogs []string, buffer int, logger arbor.ILogger, opts ...Option) *Emitter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	e := &Emitter{
		jobID:  jobID,
		logs:   append([]string(nil), seedLogs...),
		events: make(chan models.ProgressEvent, buffer),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the stream of emitted events. It is closed by Close.
func (e *Emitter) Events() <-chan models.ProgressEvent {
	return e.events
}

// Step adds increment to the progress and emits msg
func (e *Emitter) Step(msg string, increment float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(msg, e.progress+increment)
}

// Reach raises the progress to at least target and emits msg
func (e *Emitter) Reach(msg string, target float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(msg, target)
}

// Complete emits msg at the highest progress allowed before done
func (e *Emitter) Complete(msg string) {
	e.Reach(msg, MaxBeforeDone)
}

// Done emits the sentinel at 100%. The sentinel is not logged.
func (e *Emitter) Done() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = 1
	e.sendLocked(models.ProgressEvent{
		JobID:      e.jobID,
		Time:       e.now(),
		Percentage: 1,
		Message:    models.DoneMessage,
	})
}

// Logs returns a copy of the log lines recorded so far, seed included
func (e *Emitter) Logs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.logs...)
}

// Progress returns the current percentage in [0,1]
func (e *Emitter) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Close ends the event stream. Later emits are ignored.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
	if e.dropped > 0 {
		e.logger.Warn().Str("job_id", e.jobID).Int("dropped", e.dropped).Msg("Progress events dropped by a slow listener")
	}
}

func (e *Emitter) emitLocked(msg string, target float64) {
	if e.closed {
		return
	}
	if target > MaxBeforeDone {
		target = MaxBeforeDone
	}
	if target > e.progress {
		e.progress = target
	}

	event := models.ProgressEvent{
		JobID:      e.jobID,
		Time:       e.now(),
		Percentage: e.progress,
		Message:    msg,
	}
	e.logs = append(e.logs, event.LogLine())
	e.sendLocked(event)
}

func (e *Emitter) sendLocked(event models.ProgressEvent) {
	if e.closed {
		return
	}

	select {
	case e.events <- event:
	default:
		e.dropped++
	}

	if e.bus != nil {
		if err := e.bus.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventSearchProgress,
			Payload: event,
		}); err != nil {
			e.logger.Warn().Err(err).Str("job_id", e.jobID).Msg("Failed to publish progress event")
		}
	}

	e.logger.Debug().
		Str("job_id", e.jobID).
		Float64("percentage", event.Percentage).
		Msg(event.Message)
}
