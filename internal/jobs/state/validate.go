package state

import (
	"fmt"

	"github.com/ternarybob/culefilo/internal/models"
)

// Validate checks the record invariants that must hold before a job is persisted
func Validate(job models.SearchJob) error {
	if job.ID == "" {
		return invalid("missing id")
	}
	if job.Version != models.CurrentJobVersion {
		return invalid("version %d", job.Version)
	}
	if job.Input.FavoriteMealName == "" {
		return invalid("missing favorite meal name")
	}
	if job.Stage.Order() < 0 {
		return invalid("unknown stage %q", job.Stage)
	}
	if len(job.PlacesFetched) > 0 && len(job.Places) > 0 {
		return invalid("both places_fetched and places are set")
	}

	switch job.State {
	case models.JobStateRunning:
		if job.Lease == nil || job.Lease.OwnerToken == "" {
			return invalid("running job without a lease")
		}
	case models.JobStateCreated, models.JobStateFailure:
		if job.Lease != nil {
			return invalid("%s job holds a lease", job.State)
		}
	case models.JobStateSuccess:
		if job.Lease != nil {
			return invalid("finished job holds a lease")
		}
		if job.Stage != models.JobStageParsing {
			return invalid("finished job at stage %s", job.Stage)
		}
		if len(job.Places) > models.MaxPlaces {
			return invalid("%d places, at most %d allowed", len(job.Places), models.MaxPlaces)
		}
		if len(job.PlacesFetched) > 0 || len(job.Descriptions) > 0 || len(job.Thumbnails) > 0 {
			return invalid("finished job still carries working fields")
		}
	default:
		return invalid("unknown state %q", job.State)
	}

	venues := make(map[string]struct{}, len(job.PlacesFetched))
	for _, v := range job.PlacesFetched {
		if v.ID == "" {
			return invalid("venue without id")
		}
		if _, dup := venues[v.ID]; dup {
			return invalid("duplicate venue %s", v.ID)
		}
		venues[v.ID] = struct{}{}
	}
	for id := range job.Descriptions {
		if _, ok := venues[id]; !ok {
			return invalid("description for unknown venue %s", id)
		}
	}
	for id := range job.Thumbnails {
		if _, ok := venues[id]; !ok {
			return invalid("thumbnail for unknown venue %s", id)
		}
	}

	seen := make(map[string]struct{}, len(job.Places))
	for _, p := range job.Places {
		if _, dup := seen[p.ID]; dup {
			return invalid("duplicate place %s", p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidRecord)
}

// Join builds the final places from the first limit venues and the artifacts
// recorded for each venue id.
func Join(venues []models.Venue, descriptions, thumbnails map[string]string, limit int) []models.PlaceSummary {
	if limit > len(venues) || limit < 0 {
		limit = len(venues)
	}

	places := make([]models.PlaceSummary, 0, limit)
	for _, v := range venues[:limit] {
		place := models.PlaceSummary{
			ID:          v.ID,
			Name:        v.DisplayName,
			Address:     v.FormattedAddress,
			URL:         v.GoogleMapsURI,
			Rating:      v.Rating,
			RatingCount: v.UserRatingCount,
			PriceLevel:  v.PriceLevel,
			OpenNow:     v.OpenNow,
		}
		if d, ok := descriptions[v.ID]; ok {
			d := d
			place.Description = &d
		}
		if t, ok := thumbnails[v.ID]; ok {
			t := t
			place.Thumbnail = &t
		}
		places = append(places, place)
	}
	return places
}
