package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

// ErrJobNotFound is returned when no record exists for a job id
var ErrJobNotFound = errors.New("search job not found")

// ErrJobExists is returned when Create would overwrite an existing record
var ErrJobExists = errors.New("search job already exists")

const keyPrefix = "job:"

// Key returns the store key of a job
func Key(id string) string {
	return keyPrefix + id
}

// Record is a decoded job together with the store revision it was read at
type Record struct {
	Job      models.SearchJob
	Revision uint64
}

// Store gives typed, revision-checked access to search jobs
type Store struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewStore creates a job store over a key/value backend
func NewStore(kv interfaces.KeyValueStorage, logger arbor.ILogger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Create inserts a new job. It fails if the id is already taken.
func (s *Store) Create(ctx context.Context, job models.SearchJob) (uint64, error) {
	job.Version = models.CurrentJobVersion
	if err := Validate(job); err != nil {
		return 0, err
	}
	rev, err := s.write(ctx, job, 0)
	if errors.Is(err, interfaces.ErrRevisionMismatch) {
		return 0, fmt.Errorf("job %s: %w", job.ID, ErrJobExists)
	}
	return rev, err
}

// Get loads a job, migrating older record versions on the way
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	pair, err := s.kv.GetPair(ctx, Key(id))
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
		}
		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	job, err := decode([]byte(pair.Value), id)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", id, err)
	}

	return &Record{Job: job, Revision: pair.Revision}, nil
}

// Put validates job and writes it if the stored revision is still expectedRevision.
// It returns the new revision or interfaces.ErrRevisionMismatch.
func (s *Store) Put(ctx context.Context, job models.SearchJob, expectedRevision uint64) (uint64, error) {
	if err := Validate(job); err != nil {
		return 0, err
	}
	return s.write(ctx, job, expectedRevision)
}

// List returns every readable job, newest first.
// Records that cannot be decoded are skipped.
func (s *Store) List(ctx context.Context) ([]models.SearchJob, error) {
	keys, err := s.kv.ListKeys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]models.SearchJob, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, keyPrefix)
		record, err := s.Get(ctx, id)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", id).Msg("Skipping unreadable job record")
			continue
		}
		jobs = append(jobs, record.Job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

func (s *Store) write(ctx context.Context, job models.SearchJob, expectedRevision uint64) (uint64, error) {
	data, err := Encode(job)
	if err != nil {
		return 0, err
	}

	rev, err := s.kv.CompareAndSwap(ctx, Key(job.ID), string(data), expectedRevision)
	if err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to write job %s: %w", job.ID, err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("state", string(job.State)).
		Str("stage", string(job.Stage)).
		Int64("revision", int64(rev)).
		Msg("Job persisted")

	return rev, nil
}
