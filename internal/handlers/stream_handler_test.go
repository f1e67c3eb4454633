package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
)

var streamStart = time.UnixMilli(1772366400000).UTC()

func progressEvent(offset time.Duration, pct float64, msg string) models.ProgressEvent {
	return models.ProgressEvent{JobID: "job-1", Time: streamStart.Add(offset), Percentage: pct, Message: msg}
}

func TestStreamHandler_Success(t *testing.T) {
	runner := &fakeRunner{stream: newFakeStream(nil,
		progressEvent(0, 0, "Search started..."),
		progressEvent(time.Second, 0.1, `Looking for nearby places with "ramen"...`),
		progressEvent(2*time.Second, 1, models.DoneMessage),
	)}

	rec := httptest.NewRecorder()
	NewStreamHandler(runner, arbor.NewLogger()).StreamHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/job-1/stream", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"job-1"}, runner.calls)
	assert.Equal(t,
		"data: 1772366400000,0.0,Search started...\n\n"+
			"data: 1772366401000,10.0,Looking for nearby places with \"ramen\"...\n\n"+
			"data: 1772366402000,100.0,done\n\n",
		rec.Body.String())
}

func TestStreamHandler_FailureSendsErrorEvent(t *testing.T) {
	runner := &fakeRunner{stream: newFakeStream(errors.New("enrichment failed:\nquota"),
		progressEvent(0, 0, "Search started..."),
	)}

	rec := httptest.NewRecorder()
	NewStreamHandler(runner, arbor.NewLogger()).StreamHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/job-1/stream", nil))

	assert.Equal(t,
		"data: 1772366400000,0.0,Search started...\n\n"+
			"event: error\ndata: enrichment failed: quota\n\n",
		rec.Body.String())
}

func TestStreamHandler_MissingJob(t *testing.T) {
	runner := &fakeRunner{err: state.ErrJobNotFound}

	rec := httptest.NewRecorder()
	NewStreamHandler(runner, arbor.NewLogger()).StreamHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/ghost/stream", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
