package state

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/culefilo/internal/models"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newJob() models.SearchJob {
	return models.SearchJob{
		Version:   models.CurrentJobVersion,
		ID:        "job-1",
		Input:     models.SearchInput{FavoriteMealName: "ramen", LocationQuery: "Berlin"},
		Location:  models.Location{Coordinates: models.Coordinates{Latitude: 52.52, Longitude: 13.405}},
		State:     models.JobStateCreated,
		Stage:     models.JobStageInitial,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func venues(ids ...string) []models.Venue {
	out := make([]models.Venue, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Venue{ID: id, DisplayName: "Venue " + id, GoogleMapsURI: "https://maps/" + id})
	}
	return out
}

func mustNext(t *testing.T, job models.SearchJob, tr Transition, now time.Time) models.SearchJob {
	t.Helper()
	next, err := NextState(job, tr, now)
	require.NoError(t, err)
	return next
}

func TestNextState_HappyPath(t *testing.T) {
	job := newJob()

	running := mustNext(t, job, Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)
	assert.Equal(t, models.JobStateRunning, running.State)
	assert.Equal(t, 1, running.Attempts)
	require.NotNil(t, running.Lease)
	assert.Equal(t, t0.Add(time.Minute), running.Lease.ExpiresAt)

	fetched := mustNext(t, running, PlacesFetched{Venues: venues("A", "B", "C")}, t0.Add(time.Second))
	assert.Equal(t, models.JobStagePlacesFetched, fetched.Stage)
	assert.Len(t, fetched.PlacesFetched, 3)
	assert.Equal(t, t0.Add(time.Second), fetched.UpdatedAt)

	enriched := mustNext(t, fetched, Enriched{
		Descriptions: map[string]string{"A": "great broth"},
		Thumbnails:   map[string]string{"B": "data:image/jpeg;base64,AAA"},
	}, t0.Add(2*time.Second))
	assert.Equal(t, models.JobStageParsing, enriched.Stage)

	places := Join(enriched.PlacesFetched, enriched.Descriptions, enriched.Thumbnails, models.MaxPlaces)
	done := mustNext(t, enriched, Completed{Places: places, Logs: []string{"[1] Search started..."}}, t0.Add(3*time.Second))
	assert.Equal(t, models.JobStateSuccess, done.State)
	assert.Nil(t, done.Lease)
	assert.Empty(t, done.PlacesFetched)
	assert.Empty(t, done.Descriptions)
	assert.Empty(t, done.Thumbnails)
	assert.Len(t, done.Places, 3)
	assert.Equal(t, []string{"[1] Search started..."}, done.Logs)
}

func TestNextState_DoesNotMutateInput(t *testing.T) {
	job := newJob()
	running := mustNext(t, job, Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)
	fetched := mustNext(t, running, PlacesFetched{Venues: venues("A")}, t0)

	fetched.PlacesFetched[0].DisplayName = "changed"
	_ = mustNext(t, fetched, Enriched{Descriptions: map[string]string{"A": "x"}}, t0)

	assert.Equal(t, models.JobStateCreated, job.State)
	assert.Nil(t, running.PlacesFetched)
	assert.Equal(t, models.JobStageInitial, running.Stage)
	assert.Nil(t, fetched.Descriptions)
}

func TestNextState_Claim(t *testing.T) {
	lease := Claim{OwnerToken: "own_a", TTL: time.Minute}
	running := mustNext(t, newJob(), lease, t0)

	t.Run("live lease rejects second claim", func(t *testing.T) {
		_, err := NextState(running, Claim{OwnerToken: "own_b", TTL: time.Minute}, t0.Add(30*time.Second))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("expired lease can be taken over", func(t *testing.T) {
		taken := mustNext(t, running, Claim{OwnerToken: "own_b", TTL: time.Minute}, t0.Add(2*time.Minute))
		assert.Equal(t, "own_b", taken.Lease.OwnerToken)
		assert.Equal(t, 2, taken.Attempts)
	})

	t.Run("finished job cannot be claimed", func(t *testing.T) {
		job := newJob()
		job.State = models.JobStateSuccess
		job.Stage = models.JobStageParsing
		_, err := NextState(job, lease, t0)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("failed job resumes at its stage", func(t *testing.T) {
		fetched := mustNext(t, running, PlacesFetched{Venues: venues("A")}, t0)
		failed := mustNext(t, fetched, Failed{Err: errors.New("boom"), Logs: []string{"[1] a"}}, t0)
		assert.Equal(t, "boom", failed.Error)

		again := mustNext(t, failed, Claim{OwnerToken: "own_c", TTL: time.Minute}, t0)
		assert.Equal(t, models.JobStagePlacesFetched, again.Stage)
		assert.Empty(t, again.Error)
		assert.Equal(t, []string{"[1] a"}, again.Logs)
	})

	t.Run("empty owner", func(t *testing.T) {
		_, err := NextState(newJob(), Claim{TTL: time.Minute}, t0)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestNextState_Renew(t *testing.T) {
	running := mustNext(t, newJob(), Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)

	renewed := mustNext(t, running, Renew{OwnerToken: "own_a", TTL: time.Minute}, t0.Add(50*time.Second))
	assert.Equal(t, t0.Add(110*time.Second), renewed.Lease.ExpiresAt)

	_, err := NextState(running, Renew{OwnerToken: "own_b", TTL: time.Minute}, t0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestNextState_RejectsOutOfOrderStages(t *testing.T) {
	running := mustNext(t, newJob(), Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)

	tests := []struct {
		name string
		job  models.SearchJob
		tr   Transition
	}{
		{"enrich before fetch", running, Enriched{}},
		{"complete before enrich", running, Completed{}},
		{"fetch twice", mustNext(t, running, PlacesFetched{Venues: venues("A")}, t0), PlacesFetched{Venues: venues("B")}},
		{"fetch while created", newJob(), PlacesFetched{Venues: venues("A")}},
		{"fail while created", newJob(), Failed{Err: errors.New("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NextState(tt.job, tt.tr, t0)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestNextState_Reset(t *testing.T) {
	running := mustNext(t, newJob(), Claim{OwnerToken: "own_a", TTL: time.Minute}, t0)
	fetched := mustNext(t, running, PlacesFetched{Venues: venues("A", "B")}, t0)
	failed := mustNext(t, fetched, Failed{Err: errors.New("boom"), Logs: []string{"[1] x"}}, t0)

	t.Run("full reset clears working fields", func(t *testing.T) {
		reset := mustNext(t, failed, Reset{}, t0)
		assert.Equal(t, models.JobStateCreated, reset.State)
		assert.Equal(t, models.JobStageInitial, reset.Stage)
		assert.Empty(t, reset.PlacesFetched)
		assert.Empty(t, reset.Logs)
		assert.Empty(t, reset.Error)
	})

	t.Run("resume keeps checkpoint", func(t *testing.T) {
		reset := mustNext(t, failed, Reset{KeepStage: true}, t0)
		assert.Equal(t, models.JobStagePlacesFetched, reset.Stage)
		assert.Len(t, reset.PlacesFetched, 2)
	})

	t.Run("live job cannot be reset", func(t *testing.T) {
		_, err := NextState(fetched, Reset{}, t0)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("abandoned job can be reset", func(t *testing.T) {
		reset := mustNext(t, fetched, Reset{}, t0.Add(time.Hour))
		assert.Nil(t, reset.Lease)
		assert.Equal(t, models.JobStageInitial, reset.Stage)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(j *models.SearchJob)
	}{
		{"missing id", func(j *models.SearchJob) { j.ID = "" }},
		{"bad version", func(j *models.SearchJob) { j.Version = 7 }},
		{"unknown stage", func(j *models.SearchJob) { j.Stage = "cooking" }},
		{"unknown state", func(j *models.SearchJob) { j.State = "paused" }},
		{"running without lease", func(j *models.SearchJob) { j.State = models.JobStateRunning }},
		{"created with lease", func(j *models.SearchJob) { j.Lease = &models.Lease{OwnerToken: "x"} }},
		{"both lists", func(j *models.SearchJob) {
			j.PlacesFetched = venues("A")
			j.Places = []models.PlaceSummary{{ID: "A"}}
		}},
		{"too many places", func(j *models.SearchJob) {
			j.State = models.JobStateSuccess
			j.Stage = models.JobStageParsing
			j.Places = []models.PlaceSummary{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
		}},
		{"success at wrong stage", func(j *models.SearchJob) { j.State = models.JobStateSuccess }},
		{"duplicate venues", func(j *models.SearchJob) { j.PlacesFetched = venues("A", "A") }},
		{"orphan description", func(j *models.SearchJob) {
			j.PlacesFetched = venues("A")
			j.Descriptions = map[string]string{"Z": "x"}
		}},
	}

	require.NoError(t, Validate(newJob()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newJob()
			tt.mutate(&job)
			assert.ErrorIs(t, Validate(job), ErrInvalidRecord)
		})
	}
}

func TestJoin(t *testing.T) {
	vs := venues("A", "B", "C", "D")
	descriptions := map[string]string{"A": "desc A", "C": "desc C", "D": "desc D"}
	thumbnails := map[string]string{"B": "thumb B", "C": "thumb C"}

	places := Join(vs, descriptions, thumbnails, 3)
	require.Len(t, places, 3)

	for i, id := range []string{"A", "B", "C"} {
		assert.Equal(t, id, places[i].ID)
		assert.Equal(t, "Venue "+id, places[i].Name)
		assert.Equal(t, "https://maps/"+id, places[i].URL)
	}

	require.NotNil(t, places[0].Description)
	assert.Equal(t, "desc A", *places[0].Description)
	assert.Nil(t, places[0].Thumbnail)

	assert.Nil(t, places[1].Description)
	require.NotNil(t, places[1].Thumbnail)
	assert.Equal(t, "thumb B", *places[1].Thumbnail)

	assert.Equal(t, "desc C", *places[2].Description)
	assert.Equal(t, "thumb C", *places[2].Thumbnail)

	assert.Len(t, Join(vs[:2], nil, nil, 3), 2)
	assert.Empty(t, Join(nil, nil, nil, 3))
}
