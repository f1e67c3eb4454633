package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
)

const (
	wsWriteTimeout  = 10 * time.Second
	wsFrameBuffer   = 256
	maxCloseReason  = 123
	wsClosedMessage = "search finished"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebSocketHandler mirrors the progress events of one job to WebSocket clients.
// It only listens; starting a job is left to the SSE route.
type WebSocketHandler struct {
	jobs     SearchJobService
	events   interfaces.EventService
	throttle time.Duration
	logger   arbor.ILogger
}

// wsFrame is either a progress event or the end of the run
type wsFrame struct {
	event    models.ProgressEvent
	finished bool
	errMsg   string
}

func NewWebSocketHandler(jobService SearchJobService, eventService interfaces.EventService, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		jobs:   jobService,
		events: eventService,
		logger: logger,
	}
	if config != nil {
		h.throttle = config.ThrottleInterval
	}
	return h
}

// HandleSearchWebSocket handles GET /ws/search/{id}. Each text frame is a
// progress event in wire format. The connection closes normally after done
// and with an internal error status when the run fails.
func (h *WebSocketHandler) HandleSearchWebSocket(w http.ResponseWriter, r *http.Request) {
	id := PathID(r.URL.Path, "/ws/search/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	frames := make(chan wsFrame, wsFrameBuffer)
	unsubscribe, err := h.subscribe(id, frames)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to subscribe WebSocket client")
		WriteError(w, http.StatusServiceUnavailable, "Event service unavailable")
		return
	}
	defer unsubscribe()

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Search job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to load search job")
		WriteError(w, http.StatusInternalServerError, "Failed to load search job")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("job_id", id).Msg("WebSocket client connected")

	switch job.State {
	case models.JobStateSuccess:
		h.sendDone(conn, id)
		return
	case models.JobStateFailure:
		h.sendClose(conn, websocket.CloseInternalServerErr, job.Error)
		return
	}

	// Read messages from client (detects disconnection)
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					h.logger.Warn().Err(err).Msg("WebSocket error")
				}
				return
			}
		}
	}()

	var limiter *rate.Limiter
	if h.throttle > 0 {
		limiter = rate.NewLimiter(rate.Every(h.throttle), 1)
	}

	last := -1.0
	for {
		select {
		case <-disconnected:
			h.logger.Debug().Str("job_id", id).Msg("WebSocket client disconnected")
			return
		case frame := <-frames:
			if frame.finished {
				if frame.errMsg != "" {
					h.sendClose(conn, websocket.CloseInternalServerErr, frame.errMsg)
					return
				}
				h.sendDone(conn, id)
				return
			}

			event := frame.event
			if event.IsDone() {
				h.sendDone(conn, id)
				return
			}
			// bus delivery is unordered, keep the mirror monotonic
			if event.Percentage < last {
				continue
			}
			if limiter != nil && !limiter.Allow() {
				continue
			}
			if err := h.write(conn, event); err != nil {
				h.logger.Debug().Err(err).Str("job_id", id).Msg("WebSocket write failed")
				return
			}
			last = event.Percentage
		}
	}
}

func (h *WebSocketHandler) subscribe(id string, frames chan<- wsFrame) (func(), error) {
	push := func(f wsFrame) {
		select {
		case frames <- f:
		default:
			h.logger.Debug().Str("job_id", id).Msg("WebSocket frame dropped")
		}
	}

	unsubProgress, err := h.events.Subscribe(interfaces.EventSearchProgress, func(ctx context.Context, e interfaces.Event) error {
		if event, ok := e.Payload.(models.ProgressEvent); ok && event.JobID == id {
			push(wsFrame{event: event})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	unsubFinished, err := h.events.Subscribe(interfaces.EventSearchFinished, func(ctx context.Context, e interfaces.Event) error {
		payload, ok := e.Payload.(map[string]interface{})
		if !ok || payload["job_id"] != id {
			return nil
		}
		errMsg, _ := payload["error"].(string)
		push(wsFrame{finished: true, errMsg: errMsg})
		return nil
	})
	if err != nil {
		unsubProgress()
		return nil, err
	}

	return func() {
		unsubProgress()
		unsubFinished()
	}, nil
}

func (h *WebSocketHandler) write(conn *websocket.Conn, event models.ProgressEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(event.Wire()))
}

func (h *WebSocketHandler) sendDone(conn *websocket.Conn, id string) {
	done := models.ProgressEvent{JobID: id, Time: time.Now(), Percentage: 1, Message: models.DoneMessage}
	if err := h.write(conn, done); err != nil {
		return
	}
	h.sendClose(conn, websocket.CloseNormalClosure, wsClosedMessage)
}

func (h *WebSocketHandler) sendClose(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, truncateReason(reason, maxCloseReason))
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout)); err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket close failed")
	}
}

// truncateReason cuts reason to at most max bytes without splitting a rune.
func truncateReason(reason string, max int) string {
	if len(reason) <= max {
		return reason
	}
	n := max
	for n > 0 && !utf8.RuneStart(reason[n]) {
		n--
	}
	return reason[:n]
}
