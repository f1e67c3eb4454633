// Package scheduler runs periodic maintenance over stored search jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
)

// ErrLeaseExpired is recorded on running jobs whose worker stopped renewing
var ErrLeaseExpired = errors.New("lease expired")

// Service sweeps running jobs whose lease expired into the failure state
type Service struct {
	store     *state.Store
	events    interfaces.EventService
	config    common.SchedulerConfig
	cron      *cron.Cron
	logger    arbor.ILogger
	now       func() time.Time
	mu        sync.Mutex // Protects running
	sweepMu   sync.Mutex // Prevents overlapping sweeps
	running   bool
	lastRun   time.Time
	lastSwept int
}

// NewService creates a new scheduler service. events may be nil.
func NewService(store *state.Store, events interfaces.EventService, config *common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		store:  store,
		events: events,
		config: *config,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the sweep on the configured schedule and starts the cron runner
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if !s.config.Enabled {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	schedule := s.config.SweepSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", schedule).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the cron runner is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) runSweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in lease sweep")
		}
	}()

	if _, err := s.SweepExpiredLeases(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Lease sweep failed")
	}
}

// SweepExpiredLeases marks running jobs with an expired lease as failed and
// returns how many were marked. A job renewed or finished concurrently is left alone.
func (s *Service) SweepExpiredLeases(ctx context.Context) (int, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	jobs, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	now := s.now()
	swept := 0
	for _, job := range jobs {
		if job.State != models.JobStateRunning || !job.Lease.Expired(now) {
			continue
		}

		ok, err := s.failExpired(ctx, job.ID, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark stale job as failed")
			continue
		}
		if ok {
			swept++
		}
	}

	s.lastRun = now
	s.lastSwept = swept

	if swept > 0 {
		s.logger.Warn().Int("count", swept).Msg("Marked jobs with expired leases as failed")
	}
	return swept, nil
}

func (s *Service) failExpired(ctx context.Context, jobID string, now time.Time) (bool, error) {
	record, err := s.store.Get(ctx, jobID)
	if err != nil {
		return false, err
	}

	job := record.Job
	if job.State != models.JobStateRunning || !job.Lease.Expired(now) {
		return false, nil
	}

	failed, err := state.NextState(job, state.Failed{Err: ErrLeaseExpired, Logs: job.Logs}, now)
	if err != nil {
		return false, err
	}

	if _, err := s.store.Put(ctx, failed, record.Revision); err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) {
			s.logger.Debug().Str("job_id", jobID).Msg("Job changed during sweep, skipping")
			return false, nil
		}
		return false, err
	}

	s.logger.Info().Str("job_id", jobID).Str("stage", string(job.Stage)).Msg("Marked stale job as failed")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventSearchFinished,
			Payload: map[string]interface{}{
				"job_id": jobID,
				"state":  string(models.JobStateFailure),
				"error":  ErrLeaseExpired.Error(),
			},
		})
	}
	return true, nil
}

// LastSweep returns when the last sweep ran and how many jobs it marked
func (s *Service) LastSweep() (time.Time, int) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()
	return s.lastRun, s.lastSwept
}
