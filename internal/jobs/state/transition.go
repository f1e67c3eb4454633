// Package state owns the SearchJob record: its transitions, invariants, wire
// versions and typed access over the key/value store.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/culefilo/internal/models"
)

var (
	// ErrInvalidTransition is returned when a transition is not allowed from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidRecord is returned when a job violates a record invariant
	ErrInvalidRecord = errors.New("invalid search job record")
)

// Transition is one step of the job lifecycle. The set is closed: only the
// types declared in this file implement it.
type Transition interface {
	Name() string
	apply(job *models.SearchJob, now time.Time) error
}

// Claim takes ownership of a job that nobody is running
type Claim struct {
	OwnerToken string
	TTL        time.Duration
}

// Renew extends the lease held by OwnerToken
type Renew struct {
	OwnerToken string
	TTL        time.Duration
}

// PlacesFetched records the venues collected by the search stage, in discovery order
type PlacesFetched struct {
	Venues []models.Venue
}

// Enriched records descriptions and thumbnails keyed by venue id
type Enriched struct {
	Descriptions map[string]string
	Thumbnails   map[string]string
}

// Completed finishes the job with the final places
type Completed struct {
	Places []models.PlaceSummary
	Logs   []string
}

// Failed terminates a running job with the logs emitted so far
type Failed struct {
	Err  error
	Logs []string
}

// Reset prepares a failed or abandoned job for another run.
// With KeepStage the job resumes from its last checkpoint instead of starting over.
type Reset struct {
	KeepStage bool
}

func (Claim) Name() string         { return "claim" }
func (Renew) Name() string         { return "renew" }
func (PlacesFetched) Name() string { return "places_fetched" }
func (Enriched) Name() string      { return "enriched" }
func (Completed) Name() string     { return "completed" }
func (Failed) Name() string        { return "failed" }
func (Reset) Name() string         { return "reset" }

// NextState builds the record that results from applying t to current at now.
// current is never modified. The result is validated before it is returned.
func NextState(current models.SearchJob, t Transition, now time.Time) (models.SearchJob, error) {
	next := current.Clone()

	if err := t.apply(&next, now); err != nil {
		return models.SearchJob{}, fmt.Errorf("%s from %s/%s: %w", t.Name(), current.State, current.Stage, err)
	}

	if _, isReset := t.(Reset); !isReset && next.Stage.Order() < current.Stage.Order() {
		return models.SearchJob{}, fmt.Errorf("%s would move stage back from %s to %s: %w",
			t.Name(), current.Stage, next.Stage, ErrInvalidTransition)
	}

	next.Version = models.CurrentJobVersion
	next.UpdatedAt = now

	if err := Validate(next); err != nil {
		return models.SearchJob{}, fmt.Errorf("%s produced an invalid record: %w", t.Name(), err)
	}

	return next, nil
}

func (t Claim) apply(job *models.SearchJob, now time.Time) error {
	if t.OwnerToken == "" || t.TTL <= 0 {
		return fmt.Errorf("claim needs an owner token and a positive ttl: %w", ErrInvalidTransition)
	}

	switch job.State {
	case models.JobStateCreated, models.JobStateFailure:
	case models.JobStateRunning:
		if !job.Lease.Expired(now) {
			return fmt.Errorf("lease held by %s until %s: %w", job.Lease.OwnerToken, job.Lease.ExpiresAt.Format(time.RFC3339), ErrInvalidTransition)
		}
	default:
		return ErrInvalidTransition
	}

	job.State = models.JobStateRunning
	job.Lease = &models.Lease{OwnerToken: t.OwnerToken, ExpiresAt: now.Add(t.TTL)}
	job.Attempts++
	job.Error = ""
	return nil
}

func (t Renew) apply(job *models.SearchJob, now time.Time) error {
	if err := requireOwner(job, t.OwnerToken); err != nil {
		return err
	}
	if t.TTL <= 0 {
		return fmt.Errorf("renew needs a positive ttl: %w", ErrInvalidTransition)
	}
	job.Lease = &models.Lease{OwnerToken: t.OwnerToken, ExpiresAt: now.Add(t.TTL)}
	return nil
}

func (t PlacesFetched) apply(job *models.SearchJob, now time.Time) error {
	if err := requireRunningAt(job, models.JobStageInitial); err != nil {
		return err
	}
	job.PlacesFetched = append([]models.Venue(nil), t.Venues...)
	job.Stage = models.JobStagePlacesFetched
	return nil
}

func (t Enriched) apply(job *models.SearchJob, now time.Time) error {
	if err := requireRunningAt(job, models.JobStagePlacesFetched); err != nil {
		return err
	}
	job.Descriptions = copyMap(t.Descriptions)
	job.Thumbnails = copyMap(t.Thumbnails)
	job.Stage = models.JobStageParsing
	return nil
}

func (t Completed) apply(job *models.SearchJob, now time.Time) error {
	if err := requireRunningAt(job, models.JobStageParsing); err != nil {
		return err
	}
	job.State = models.JobStateSuccess
	job.Places = append([]models.PlaceSummary{}, t.Places...)
	job.Logs = append([]string(nil), t.Logs...)
	job.PlacesFetched = nil
	job.Descriptions = nil
	job.Thumbnails = nil
	job.Lease = nil
	job.Error = ""
	return nil
}

func (t Failed) apply(job *models.SearchJob, now time.Time) error {
	if job.State != models.JobStateRunning {
		return fmt.Errorf("job is %s: %w", job.State, ErrInvalidTransition)
	}
	job.State = models.JobStateFailure
	job.Logs = append([]string(nil), t.Logs...)
	job.Lease = nil
	job.Error = "unknown error"
	if t.Err != nil {
		job.Error = t.Err.Error()
	}
	return nil
}

func (t Reset) apply(job *models.SearchJob, now time.Time) error {
	switch job.State {
	case models.JobStateFailure:
	case models.JobStateRunning:
		if !job.Lease.Expired(now) {
			return fmt.Errorf("job is still running: %w", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("job is %s: %w", job.State, ErrInvalidTransition)
	}

	job.State = models.JobStateCreated
	job.Lease = nil
	job.Error = ""
	job.Logs = nil

	if !t.KeepStage {
		job.Stage = models.JobStageInitial
		job.PlacesFetched = nil
		job.Descriptions = nil
		job.Thumbnails = nil
		job.Places = nil
	}
	return nil
}

func requireRunningAt(job *models.SearchJob, stage models.JobStage) error {
	if job.State != models.JobStateRunning || job.Stage != stage {
		return fmt.Errorf("expected running/%s: %w", stage, ErrInvalidTransition)
	}
	return nil
}

func requireOwner(job *models.SearchJob, owner string) error {
	if job.State != models.JobStateRunning || job.Lease == nil || job.Lease.OwnerToken != owner {
		return fmt.Errorf("lease not held by %s: %w", owner, ErrInvalidTransition)
	}
	return nil
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
