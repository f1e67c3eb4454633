package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

// ErrMissingAPIKey is returned when no Places API key could be resolved
var ErrMissingAPIKey = errors.New("google places api key not configured")

const maxPhotoBytes = 10 << 20

// Service implements the PlacesService interface over the Places API v1
type Service struct {
	config     *common.PlacesAPIConfig
	logger     arbor.ILogger
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewService creates a new Places service instance.
// The API key is resolved from the environment, then the KV store, then config.
func NewService(
	config *common.PlacesAPIConfig,
	kv interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *Service {
	apiKey, err := common.ResolveAPIKey(context.Background(), kv, "google_places_api_key", config.APIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("Google Places API key not found, place searches will fail")
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Every(config.RateLimit)
	}

	return &Service{
		config:  config,
		logger:  logger,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Search runs a restaurant text search restricted to a rectangle around coords
func (s *Service) Search(ctx context.Context, text string, coords models.Coordinates) ([]models.Venue, error) {
	payload := SearchTextRequest{
		TextQuery:      text,
		IncludedType:   "restaurant",
		MaxResultCount: s.config.MaxResultsPerSearch,
		LocationRestriction: &LocationRestriction{
			Rectangle: RectangleAround(coords, s.config.RadiusKm),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var apiResp SearchTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode places response: %w", err)
	}

	venues := make([]models.Venue, 0, len(apiResp.Places))
	names := make([]string, 0, len(apiResp.Places))
	for _, place := range apiResp.Places {
		if place.ID == "" {
			continue
		}
		venues = append(venues, toVenue(place))
		names = append(names, place.DisplayName.Text)
	}

	s.logger.Info().
		Str("search_query", text).
		Float64("latitude", coords.Latitude).
		Float64("longitude", coords.Longitude).
		Int("results_count", len(venues)).
		Strs("places", names).
		Msg("Places text search completed")

	return venues, nil
}

// DownloadPhoto fetches the JPEG bytes of a photo resource
func (s *Service) DownloadPhoto(ctx context.Context, photoName string) ([]byte, error) {
	if photoName == "" {
		return nil, fmt.Errorf("photo name is required")
	}

	params := url.Values{}
	params.Set("maxWidthPx", strconv.Itoa(s.config.PhotoMaxWidthPx))
	photoURL := fmt.Sprintf("%s/%s/media?%s", s.baseURL, strings.TrimLeft(photoName, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo request: %w", err)
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", photoName, err)
	}

	s.logger.Debug().Str("photo", photoName).Int("bytes", len(data)).Msg("Photo downloaded")
	return data, nil
}

// do waits for the rate limiter, authenticates and sends req.
// Non-2xx responses are turned into errors.
func (s *Service) do(req *http.Request) (*http.Response, error) {
	if s.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := s.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("places rate limiter: %w", err)
	}

	req.Header.Set("X-Goog-Api-Key", s.apiKey)

	// Redact API key in logs
	s.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("api_key", "***REDACTED***").
		Msg("Calling Google Places API")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Google Places API: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("Google Places API returned status %d: %s %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Google Places API returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

func toVenue(place Place) models.Venue {
	venue := models.Venue{
		ID:               place.ID,
		DisplayName:      place.DisplayName.Text,
		FormattedAddress: place.FormattedAddress,
		GoogleMapsURI:    place.GoogleMapsURI,
		Rating:           place.Rating,
		UserRatingCount:  place.UserRatingCount,
		PriceLevel:       models.ParsePriceLevel(place.PriceLevel),
	}

	if place.Location != nil {
		venue.Location = &models.Coordinates{Latitude: place.Location.Latitude, Longitude: place.Location.Longitude}
	}
	if place.CurrentOpeningHours != nil {
		open := place.CurrentOpeningHours.OpenNow
		venue.OpenNow = &open
	}
	for _, review := range place.Reviews {
		if review.Text.Text != "" {
			venue.Reviews = append(venue.Reviews, review.Text.Text)
		}
	}
	for _, photo := range place.Photos {
		venue.Photos = append(venue.Photos, models.PhotoRef{Name: photo.Name, WidthPx: photo.WidthPx, HeightPx: photo.HeightPx})
	}

	return venue
}
