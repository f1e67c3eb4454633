package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/app"
	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/models"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.InMemory = true
	cfg.Scheduler.Enabled = false
	cfg.Variables.Dir = t.TempDir()

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return New(application)
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRoutes_CreateGetHistory(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodPost, "/api/search",
		`{"favorite_meal_name":"ramen","location_query":"Austin, TX","latitude":30.27,"longitude":-97.74}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	rec = serve(s, http.MethodGet, "/api/search/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.SearchJobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, id, view.ID)
	assert.Equal(t, models.JobStateCreated, view.State)
	assert.Equal(t, "ramen", view.Input.FavoriteMealName)

	rec = serve(s, http.MethodGet, "/api/search/"+id+"?raw=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var raw models.SearchJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, models.JobStageInitial, raw.Stage)

	rec = serve(s, http.MethodPost, "/api/search/"+id+"/retry", "")
	assert.Equal(t, http.StatusOK, rec.Code, "retrying a created job is a no-op")

	rec = serve(s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []models.SearchJobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].ID)
}

func TestRoutes_Errors(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/api/search", `{"favorite_meal_name":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(s, http.MethodPost, "/api/search", `{"favorite_meal_name":"ramen","location_query":"Berlin"}`).Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/search/missing", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/search/missing/stream", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/search/a/b/c", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/api/unknown", "").Code)
}

func TestRoutes_System(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(s, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)

	rec = serve(s, http.MethodOptions, "/api/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
