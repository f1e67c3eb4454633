package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/services/jobs"
)

const maxRequestBody = 1 << 20

// SearchHandler serves job submission, lookup, retry and history
type SearchHandler struct {
	jobs   SearchJobService
	logger arbor.ILogger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(jobService SearchJobService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		jobs:   jobService,
		logger: logger,
	}
}

// CreateHandler handles POST /api/search with a JSON or form body
func (h *SearchHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	req, err := decodeCreateRequest(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.jobs.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidRequest) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to create search job")
		WriteError(w, http.StatusInternalServerError, "Failed to create search job")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (jobs.CreateRequest, error) {
	var req jobs.CreateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}

	req.FavoriteMealName = r.PostForm.Get("favorite_meal_name")
	req.LocationQuery = r.PostForm.Get("location_query")
	req.City = r.PostForm.Get("city")
	req.State = r.PostForm.Get("state")
	req.Country = r.PostForm.Get("country")
	req.ZipCode = r.PostForm.Get("zip_code")

	var err error
	if req.Latitude, err = parseCoordinate(r.PostForm.Get("latitude")); err != nil {
		return req, errors.New("invalid latitude")
	}
	if req.Longitude, err = parseCoordinate(r.PostForm.Get("longitude")); err != nil {
		return req, errors.New("invalid longitude")
	}
	return req, nil
}

// parseCoordinate returns nil for an empty value so validation reports it as missing
func parseCoordinate(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetHandler handles GET /api/search/{id}. ?raw=true returns the stored record.
func (h *SearchHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	id := PathID(r.URL.Path, "/api/search/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		h.writeJobError(w, id, err)
		return
	}

	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		WriteJSON(w, http.StatusOK, job)
		return
	}
	WriteJSON(w, http.StatusOK, jobs.Serialize(job))
}

// RetryHandler handles POST /api/search/{id}/retry[?resume=true]
func (h *SearchHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	id := PathID(r.URL.Path, "/api/search/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}
	resume, _ := strconv.ParseBool(r.URL.Query().Get("resume"))

	if err := h.jobs.Retry(r.Context(), id, resume); err != nil {
		h.writeJobError(w, id, err)
		return
	}

	WriteSuccess(w, "Search job reset")
}

// HistoryHandler handles GET /api/history
func (h *SearchHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	history, err := h.jobs.History(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list search history")
		WriteError(w, http.StatusInternalServerError, "Failed to list search history")
		return
	}

	WriteJSON(w, http.StatusOK, history)
}

func (h *SearchHandler) writeJobError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, state.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "Search job not found")
	case errors.Is(err, jobs.ErrJobActive), errors.Is(err, jobs.ErrJobSucceeded):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Str("job_id", id).Msg("Search job request failed")
		WriteError(w, http.StatusInternalServerError, "Search job request failed")
	}
}
