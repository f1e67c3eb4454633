package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
	"github.com/ternarybob/culefilo/internal/services/jobs"
)

func coord(v float64) *float64 {
	return &v
}

func TestCreateHandler_JSON(t *testing.T) {
	svc := &mockJobs{}
	svc.On("Create", mock.Anything, jobs.CreateRequest{
		FavoriteMealName: "ramen",
		LocationQuery:    "Berlin",
		Latitude:         coord(52.52),
		Longitude:        coord(13.405),
	}).Return("job-1", nil)

	body := `{"favorite_meal_name":"ramen","location_query":"Berlin","latitude":52.52,"longitude":13.405}`
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()

	NewSearchHandler(svc, arbor.NewLogger()).CreateHandler(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["id"])
}

func TestCreateHandler_Form(t *testing.T) {
	svc := &mockJobs{}
	svc.On("Create", mock.Anything, jobs.CreateRequest{
		FavoriteMealName: "pho",
		LocationQuery:    "Hanoi",
		Latitude:         coord(21.02),
		Longitude:        coord(105.83),
		Country:          "Vietnam",
	}).Return("job-2", nil)

	form := url.Values{
		"favorite_meal_name": {"pho"},
		"location_query":     {"Hanoi"},
		"latitude":           {"21.02"},
		"longitude":          {"105.83"},
		"country":            {"Vietnam"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	NewSearchHandler(svc, arbor.NewLogger()).CreateHandler(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateHandler_BadRequests(t *testing.T) {
	svc := &mockJobs{}
	svc.On("Create", mock.Anything, mock.Anything).Return("", jobs.ErrInvalidRequest)
	h := NewSearchHandler(svc, arbor.NewLogger())

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"malformed json", "application/json", "{"},
		{"bad latitude", "application/x-www-form-urlencoded", "favorite_meal_name=x&location_query=y&latitude=north"},
		{"validation", "application/json", `{"favorite_meal_name":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.CreateHandler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.CreateHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCreateHandler_MissingCoordinatesReachValidation(t *testing.T) {
	missing := mock.MatchedBy(func(req jobs.CreateRequest) bool {
		return req.Latitude == nil && req.Longitude == nil
	})
	svc := &mockJobs{}
	svc.On("Create", mock.Anything, missing).Return("", jobs.ErrInvalidRequest)
	h := NewSearchHandler(svc, arbor.NewLogger())

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"form without coordinates", "application/x-www-form-urlencoded", "favorite_meal_name=ramen&location_query=Berlin"},
		{"form with empty coordinates", "application/x-www-form-urlencoded", "favorite_meal_name=ramen&location_query=Berlin&latitude=&longitude=+"},
		{"json without coordinates", "application/json", `{"favorite_meal_name":"ramen","location_query":"Berlin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			h.CreateHandler(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	svc.AssertNumberOfCalls(t, "Create", len(tests))
}

func TestGetHandler(t *testing.T) {
	description := "Rich broth."
	job := &models.SearchJob{
		Version:       models.CurrentJobVersion,
		ID:            "job-1",
		Input:         models.SearchInput{FavoriteMealName: "ramen", LocationQuery: "Berlin"},
		State:         models.JobStateRunning,
		Stage:         models.JobStagePlacesFetched,
		PlacesFetched: []models.Venue{{ID: "A", DisplayName: "A"}},
		Places:        []models.PlaceSummary{{ID: "A", Name: "A", Description: &description}},
		CreatedAt:     time.Date(2026, 3, 1, 15, 4, 5, 0, time.UTC),
	}
	svc := &mockJobs{}
	svc.On("Get", mock.Anything, "job-1").Return(job, nil)
	svc.On("Get", mock.Anything, "ghost").Return(nil, state.ErrJobNotFound)
	h := NewSearchHandler(svc, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "3/1/2026, 3:04:05 PM", view["created_at"])
	assert.NotContains(t, view, "places_fetched")

	rec = httptest.NewRecorder()
	h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/job-1?raw=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "places_fetched")
	assert.Equal(t, "places_fetched", raw["stage"])

	rec = httptest.NewRecorder()
	h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/api/search/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryHandler(t *testing.T) {
	svc := &mockJobs{}
	svc.On("Retry", mock.Anything, "job-1", true).Return(nil)
	svc.On("Retry", mock.Anything, "job-2", false).Return(jobs.ErrJobActive)
	h := NewSearchHandler(svc, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.RetryHandler(rec, httptest.NewRequest(http.MethodPost, "/api/search/job-1/retry?resume=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.RetryHandler(rec, httptest.NewRequest(http.MethodPost, "/api/search/job-2/retry", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.AssertExpectations(t)
}

func TestHistoryHandler(t *testing.T) {
	svc := &mockJobs{}
	svc.On("History", mock.Anything).Return([]models.SearchJobView{{ID: "b"}, {ID: "a"}}, nil)

	rec := httptest.NewRecorder()
	NewSearchHandler(svc, arbor.NewLogger()).HistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var views []models.SearchJobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "b", views[0].ID)
}

func TestPathID(t *testing.T) {
	assert.Equal(t, "abc", PathID("/api/search/abc", "/api/search/"))
	assert.Equal(t, "abc", PathID("/api/search/abc/stream", "/api/search/"))
	assert.Equal(t, "", PathID("/api/search/", "/api/search/"))
	assert.Equal(t, "", PathID("/other/abc", "/api/search/"))
}
