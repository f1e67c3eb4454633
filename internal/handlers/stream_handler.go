package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/jobs/state"
)

// StreamHandler advances a job and streams its progress as Server-Sent Events
type StreamHandler struct {
	runner interfaces.JobRunner
	logger arbor.ILogger
}

// NewStreamHandler creates a new SSE progress handler
func NewStreamHandler(runner interfaces.JobRunner, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{
		runner: runner,
		logger: logger,
	}
}

// StreamHandler handles GET /api/search/{id}/stream.
// Every event is "data: <ms>,<pct>,<msg>". A failed run ends with "event: error".
func (h *StreamHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := PathID(r.URL.Path, "/api/search/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.runner.Advance(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "Search job not found")
			return
		}
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to start search job")
		WriteError(w, http.StatusInternalServerError, "Failed to start search job")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			// the run continues without a listener
			h.logger.Debug().Str("job_id", id).Msg("SSE client disconnected")
			return
		case event, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					fmt.Fprintf(w, "event: error\ndata: %s\n\n", singleLine(err.Error()))
					flusher.Flush()
				}
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", singleLine(event.Wire()))
			flusher.Flush()
		}
	}
}

func singleLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
