package models

import "time"

// CurrentJobVersion is the schema version written for every SearchJob
const CurrentJobVersion = 2

// MaxPlaces is the most places a finished job may hold
const MaxPlaces = 3

// JobState is the coarse lifecycle flag of a search job
type JobState string

const (
	JobStateCreated JobState = "created"
	JobStateRunning JobState = "running"
	JobStateSuccess JobState = "success"
	JobStateFailure JobState = "failure"
)

// JobStage is the resume point within a running job
type JobStage string

const (
	JobStageInitial       JobStage = "initial"
	JobStagePlacesFetched JobStage = "places_fetched"
	JobStageParsing       JobStage = "parsing"
)

// Order returns the position of the stage in the pipeline, or -1 for unknown stages
func (s JobStage) Order() int {
	switch s {
	case JobStageInitial:
		return 0
	case JobStagePlacesFetched:
		return 1
	case JobStageParsing:
		return 2
	default:
		return -1
	}
}

// SearchInput is what the user asked for
type SearchInput struct {
	FavoriteMealName string `json:"favorite_meal_name"`
	LocationQuery    string `json:"location_query"`
}

// Lease marks the worker that currently owns a running job
type Lease struct {
	OwnerToken string    `json:"owner_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lease no longer protects the job at now
func (l *Lease) Expired(now time.Time) bool {
	return l == nil || !now.Before(l.ExpiresAt)
}

// SearchJob is the persisted unit of work
type SearchJob struct {
	Version       int               `json:"version"`
	ID            string            `json:"id"`
	Input         SearchInput       `json:"input"`
	Location      Location          `json:"location"`
	State         JobState          `json:"state"`
	Stage         JobStage          `json:"stage"`
	PlacesFetched []Venue           `json:"places_fetched,omitempty"`
	Descriptions  map[string]string `json:"descriptions,omitempty"`
	Thumbnails    map[string]string `json:"thumbnails,omitempty"`
	Places        []PlaceSummary    `json:"places,omitempty"`
	Logs          []string          `json:"logs,omitempty"`
	Lease         *Lease            `json:"lease,omitempty"`
	Error         string            `json:"error,omitempty"`
	Attempts      int               `json:"attempts,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so transitions never share slices or maps with their input
func (j SearchJob) Clone() SearchJob {
	out := j
	if j.PlacesFetched != nil {
		out.PlacesFetched = make([]Venue, len(j.PlacesFetched))
		copy(out.PlacesFetched, j.PlacesFetched)
	}
	out.Descriptions = cloneMap(j.Descriptions)
	out.Thumbnails = cloneMap(j.Thumbnails)
	if j.Places != nil {
		out.Places = make([]PlaceSummary, len(j.Places))
		copy(out.Places, j.Places)
	}
	if j.Logs != nil {
		out.Logs = make([]string, len(j.Logs))
		copy(out.Logs, j.Logs)
	}
	if j.Lease != nil {
		lease := *j.Lease
		out.Lease = &lease
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SearchJobView is the display projection served to history and detail views.
// Working fields are omitted.
type SearchJobView struct {
	ID        string         `json:"id"`
	Input     SearchInput    `json:"input"`
	Location  Location       `json:"location"`
	State     JobState       `json:"state"`
	Places    []PlaceSummary `json:"places"`
	Logs      []string       `json:"logs"`
	Error     string         `json:"error,omitempty"`
	CreatedAt string         `json:"created_at"`
}
