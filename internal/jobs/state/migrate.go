package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/culefilo/internal/models"
)

// ErrUnsupportedVersion is returned for records written by an unknown schema version
var ErrUnsupportedVersion = errors.New("unsupported search job version")

// legacyOwner marks the lease given to jobs that were running under the v1 schema.
// The lease is already expired so the job can be claimed again.
const legacyOwner = "legacy"

// Encode serializes a job in the current schema
func Encode(job models.SearchJob) ([]byte, error) {
	job.Version = models.CurrentJobVersion
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search job %s: %w", job.ID, err)
	}
	return data, nil
}

// Decode parses a stored record of any known version into the current schema
func Decode(data []byte) (models.SearchJob, error) {
	return decode(data, "")
}

// decode falls back to fallbackID for records that did not carry their own id
func decode(data []byte, fallbackID string) (models.SearchJob, error) {
	var envelope struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return models.SearchJob{}, fmt.Errorf("malformed record: %v: %w", err, ErrInvalidRecord)
	}

	var (
		job models.SearchJob
		err error
	)
	switch {
	case envelope.Version == nil || *envelope.Version == 1:
		job, err = migrateV1(data)
	case *envelope.Version == models.CurrentJobVersion:
		err = json.Unmarshal(data, &job)
		if err != nil {
			err = fmt.Errorf("malformed v%d record: %v: %w", models.CurrentJobVersion, err, ErrInvalidRecord)
		}
	default:
		return models.SearchJob{}, fmt.Errorf("version %d: %w", *envelope.Version, ErrUnsupportedVersion)
	}
	if err != nil {
		return models.SearchJob{}, err
	}
	if job.ID == "" {
		job.ID = fallbackID
	}

	if err := Validate(job); err != nil {
		return models.SearchJob{}, err
	}
	return job, nil
}

type legacyJob struct {
	ID    string `json:"id"`
	Input struct {
		FavoriteMealName string `json:"favoriteMealName"`
		Address          string `json:"address"`
	} `json:"input"`
	Location struct {
		ZipCode     string `json:"zipCode"`
		Country     string `json:"country"`
		City        string `json:"city"`
		State       string `json:"state"`
		Coordinates struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"coordinates"`
	} `json:"location"`
	State         string               `json:"state"`
	Stage         string               `json:"stage"`
	PlacesFetched json.RawMessage      `json:"placesFetched"`
	AllPlaces     json.RawMessage      `json:"allPlaces"`
	Descriptions  []*legacyDescription `json:"descriptions"`
	Thumbnails    []*legacyThumbnail   `json:"thumbnails"`
	Places        []legacyPlace        `json:"places"`
	Logs          []string             `json:"logs"`
	CreatedAt     float64              `json:"createdAt"`
}

type legacyDescription struct {
	ID          string  `json:"id"`
	Description *string `json:"description"`
}

type legacyThumbnail struct {
	ID        string  `json:"id"`
	Thumbnail *string `json:"thumbnail"`
}

type legacyVenue struct {
	ID               string `json:"id"`
	FormattedAddress string `json:"formattedAddress"`
	GoogleMapsURI    string `json:"googleMapsUri"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Rating          float64 `json:"rating"`
	UserRatingCount int     `json:"userRatingCount"`
	PriceLevel      string  `json:"priceLevel"`
	DisplayName     struct {
		Text string `json:"text"`
	} `json:"displayName"`
	CurrentOpeningHours *struct {
		OpenNow bool `json:"openNow"`
	} `json:"currentOpeningHours"`
	Reviews []struct {
		Text struct {
			Text string `json:"text"`
		} `json:"text"`
	} `json:"reviews"`
	Photos []struct {
		Name     string `json:"name"`
		WidthPx  int    `json:"widthPx"`
		HeightPx int    `json:"heightPx"`
	} `json:"photos"`
}

type legacyPlace struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Address     string  `json:"address"`
	URL         string  `json:"url"`
	Thumbnail   *string `json:"thumbnail"`
	Rating      struct {
		Number float64 `json:"number"`
		Count  int     `json:"count"`
	} `json:"rating"`
	Price     string `json:"price"`
	IsOpenNow *bool  `json:"isOpenNow"`
}

func migrateV1(data []byte) (models.SearchJob, error) {
	var old legacyJob
	if err := json.Unmarshal(data, &old); err != nil {
		return models.SearchJob{}, fmt.Errorf("malformed v1 record: %v: %w", err, ErrInvalidRecord)
	}

	state, err := legacyState(old.State)
	if err != nil {
		return models.SearchJob{}, err
	}
	stage, err := legacyStage(old.Stage)
	if err != nil {
		return models.SearchJob{}, err
	}

	created := time.UnixMilli(int64(old.CreatedAt)).UTC()
	job := models.SearchJob{
		Version: models.CurrentJobVersion,
		ID:      old.ID,
		Input: models.SearchInput{
			FavoriteMealName: old.Input.FavoriteMealName,
			LocationQuery:    old.Input.Address,
		},
		Location: models.Location{
			Coordinates: models.Coordinates{
				Latitude:  old.Location.Coordinates.Latitude,
				Longitude: old.Location.Coordinates.Longitude,
			},
			City:    old.Location.City,
			State:   old.Location.State,
			Country: old.Location.Country,
			ZipCode: old.Location.ZipCode,
		},
		State:     state,
		Stage:     stage,
		Logs:      old.Logs,
		CreatedAt: created,
		UpdatedAt: created,
	}

	raw := old.PlacesFetched
	if isEmptyJSON(raw) {
		raw = old.AllPlaces
	}
	venues, err := decodeOrderedVenues(raw)
	if err != nil {
		return models.SearchJob{}, err
	}
	job.PlacesFetched = venues

	for _, d := range old.Descriptions {
		if d == nil || d.Description == nil || *d.Description == "" {
			continue
		}
		if job.Descriptions == nil {
			job.Descriptions = make(map[string]string)
		}
		job.Descriptions[d.ID] = *d.Description
	}
	for _, t := range old.Thumbnails {
		if t == nil || t.Thumbnail == nil || *t.Thumbnail == "" {
			continue
		}
		if job.Thumbnails == nil {
			job.Thumbnails = make(map[string]string)
		}
		job.Thumbnails[t.ID] = *t.Thumbnail
	}

	for _, p := range old.Places {
		job.Places = append(job.Places, models.PlaceSummary{
			ID:          p.ID,
			Name:        p.Name,
			Address:     p.Address,
			URL:         p.URL,
			Rating:      p.Rating.Number,
			RatingCount: p.Rating.Count,
			PriceLevel:  models.ParsePriceLevel(p.Price),
			OpenNow:     p.IsOpenNow,
			Description: p.Description,
			Thumbnail:   p.Thumbnail,
		})
	}

	switch job.State {
	case models.JobStateSuccess:
		// v1 left working fields behind on finished jobs
		job.Stage = models.JobStageParsing
		job.PlacesFetched = nil
		job.Descriptions = nil
		job.Thumbnails = nil
	case models.JobStateRunning:
		job.Lease = &models.Lease{OwnerToken: legacyOwner, ExpiresAt: created}
	}

	if len(job.PlacesFetched) > 0 {
		job.Places = nil
	}
	dropOrphans(job.Descriptions, job.PlacesFetched)
	dropOrphans(job.Thumbnails, job.PlacesFetched)

	return job, nil
}

// decodeOrderedVenues reads a JSON object of id -> venue keeping key order
func decodeOrderedVenues(raw json.RawMessage) ([]models.Venue, error) {
	if isEmptyJSON(raw) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("malformed placesFetched: %v: %w", err, ErrInvalidRecord)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("placesFetched is not an object: %w", ErrInvalidRecord)
	}

	var venues []models.Venue
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed placesFetched key: %v: %w", err, ErrInvalidRecord)
		}
		key, _ := keyTok.(string)

		var lv legacyVenue
		if err := dec.Decode(&lv); err != nil {
			return nil, fmt.Errorf("malformed venue %s: %v: %w", key, err, ErrInvalidRecord)
		}
		if lv.ID == "" {
			lv.ID = key
		}
		venues = append(venues, lv.toVenue())
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("malformed placesFetched: %v: %w", err, ErrInvalidRecord)
	}
	return venues, nil
}

func (lv legacyVenue) toVenue() models.Venue {
	v := models.Venue{
		ID:               lv.ID,
		DisplayName:      lv.DisplayName.Text,
		FormattedAddress: lv.FormattedAddress,
		GoogleMapsURI:    lv.GoogleMapsURI,
		Rating:           lv.Rating,
		UserRatingCount:  lv.UserRatingCount,
		PriceLevel:       models.ParsePriceLevel(lv.PriceLevel),
	}
	if lv.Location != nil {
		v.Location = &models.Coordinates{Latitude: lv.Location.Latitude, Longitude: lv.Location.Longitude}
	}
	if lv.CurrentOpeningHours != nil {
		open := lv.CurrentOpeningHours.OpenNow
		v.OpenNow = &open
	}
	for _, r := range lv.Reviews {
		if r.Text.Text != "" {
			v.Reviews = append(v.Reviews, r.Text.Text)
		}
	}
	for _, p := range lv.Photos {
		v.Photos = append(v.Photos, models.PhotoRef{Name: p.Name, WidthPx: p.WidthPx, HeightPx: p.HeightPx})
	}
	return v
}

func legacyState(s string) (models.JobState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "":
		return models.JobStateCreated, nil
	case "running":
		return models.JobStateRunning, nil
	case "success":
		return models.JobStateSuccess, nil
	case "failure", "failed":
		return models.JobStateFailure, nil
	default:
		return "", fmt.Errorf("unknown v1 state %q: %w", s, ErrInvalidRecord)
	}
}

func legacyStage(s string) (models.JobStage, error) {
	normalized := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
	switch normalized {
	case "initial", "":
		return models.JobStageInitial, nil
	case "placesfetched":
		return models.JobStagePlacesFetched, nil
	case "parsing":
		return models.JobStageParsing, nil
	default:
		return "", fmt.Errorf("unknown v1 stage %q: %w", s, ErrInvalidRecord)
	}
}

// dropOrphans removes artifacts whose venue is not part of the record
func dropOrphans(artifacts map[string]string, venues []models.Venue) {
	known := make(map[string]struct{}, len(venues))
	for _, v := range venues {
		known[v.ID] = struct{}{}
	}
	for id := range artifacts {
		if _, ok := known[id]; !ok {
			delete(artifacts, id)
		}
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}"))
}
