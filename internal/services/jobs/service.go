// Package jobs creates search jobs and serves their display projections.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
)

var (
	// ErrInvalidRequest wraps every submission validation failure
	ErrInvalidRequest = errors.New("invalid search request")
	// ErrJobActive is returned when retrying a job another worker still owns
	ErrJobActive = errors.New("job is still running")
	// ErrJobSucceeded is returned when retrying a finished job
	ErrJobSucceeded = errors.New("job already succeeded")
)

// CreatedAtLayout renders timestamps the way en-US toLocaleString does
const CreatedAtLayout = "1/2/2006, 3:04:05 PM"

// CreateRequest is a new search submitted by a user
type CreateRequest struct {
	FavoriteMealName string  `json:"favorite_meal_name" validate:"required,min=1,max=30"`
	LocationQuery    string  `json:"location_query" validate:"required"`
	Latitude         *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	City             string  `json:"city,omitempty"`
	State            string  `json:"state,omitempty"`
	Country          string  `json:"country,omitempty"`
	ZipCode          string  `json:"zip_code,omitempty"`
}

// Service provides high-level job management operations
type Service struct {
	store    *state.Store
	validate *validator.Validate
	logger   arbor.ILogger
	now      func() time.Time
	newID    func() string
}

// NewService creates a new job service
func NewService(store *state.Store, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
		newID:    common.NewJobID,
	}
}

// Create validates req and stores a new job in the created state
func (s *Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	req.FavoriteMealName = strings.TrimSpace(req.FavoriteMealName)
	req.LocationQuery = strings.TrimSpace(req.LocationQuery)

	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now().UTC()
	job := models.SearchJob{
		Version: models.CurrentJobVersion,
		ID:      s.newID(),
		Input: models.SearchInput{
			FavoriteMealName: req.FavoriteMealName,
			LocationQuery:    req.LocationQuery,
		},
		Location: models.Location{
			Coordinates: models.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude},
			City:        req.City,
			State:       req.State,
			Country:     req.Country,
			ZipCode:     req.ZipCode,
		},
		State:     models.JobStateCreated,
		Stage:     models.JobStageInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("meal", job.Input.FavoriteMealName).
		Str("location", job.Input.LocationQuery).
		Msg("Search job created")

	return job.ID, nil
}

// Get returns the raw stored job
func (s *Service) Get(ctx context.Context, id string) (*models.SearchJob, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &record.Job, nil
}

// Retry makes a failed or abandoned job runnable again. With resume the
// next run continues from its last checkpoint. Created jobs are left as they are.
func (s *Service) Retry(ctx context.Context, id string, resume bool) error {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	job := record.Job
	switch {
	case job.State == models.JobStateCreated:
		return nil
	case job.State == models.JobStateSuccess:
		return ErrJobSucceeded
	case job.State == models.JobStateRunning && !job.Lease.Expired(s.now()):
		return ErrJobActive
	}

	reset, err := state.NextState(job, state.Reset{KeepStage: resume}, s.now())
	if err != nil {
		return err
	}

	if _, err := s.store.Put(ctx, reset, record.Revision); err != nil {
		return fmt.Errorf("failed to reset job %s: %w", id, err)
	}

	s.logger.Info().
		Str("job_id", id).
		Bool("resume", resume).
		Str("stage", string(reset.Stage)).
		Msg("Search job reset for retry")
	return nil
}

// History returns every readable job, newest first
func (s *Service) History(ctx context.Context) ([]models.SearchJobView, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	views := make([]models.SearchJobView, len(jobs))
	for i := range jobs {
		views[i] = Serialize(&jobs[i])
	}
	return views, nil
}

// Serialize projects job for display. Working fields are dropped.
func Serialize(job *models.SearchJob) models.SearchJobView {
	places := job.Places
	if places == nil {
		places = []models.PlaceSummary{}
	}
	logs := job.Logs
	if logs == nil {
		logs = []string{}
	}

	return models.SearchJobView{
		ID:        job.ID,
		Input:     job.Input,
		Location:  job.Location,
		State:     job.State,
		Places:    places,
		Logs:      logs,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.UTC().Format(CreatedAtLayout),
	}
}
