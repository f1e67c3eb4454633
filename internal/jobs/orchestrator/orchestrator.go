// Package orchestrator drives a search job through its checkpointed stages.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/jobs/progress"
	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/models"
)

// ErrLeaseLost is returned when another worker wrote the job while this one was running it
var ErrLeaseLost = errors.New("job lease lost to another worker")

const (
	summarizeProgress = 0.4
	parsingProgress   = 0.8
)

// Orchestrator advances search jobs. One instance serves every job.
type Orchestrator struct {
	store      *state.Store
	aggregator interfaces.PlaceAggregator
	enricher   interfaces.PlaceEnricher
	events     interfaces.EventService
	config     common.SearchConfig
	logger     arbor.ILogger

	now      func() time.Time
	newOwner func() string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock replaces the time source used for leases, logs and durations
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. events may be nil.
func New(
	store *state.Store,
	aggregator interfaces.PlaceAggregator,
	enricher interfaces.PlaceEnricher,
	events interfaces.EventService,
	config *common.SearchConfig,
	logger arbor.ILogger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		aggregator: aggregator,
		enricher:   enricher,
		events:     events,
		config:     *config,
		logger:     logger,
		now:        time.Now,
		newOwner:   common.NewOwnerToken,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ interfaces.JobRunner = (*Orchestrator)(nil)

// Stream carries the progress of one Advance call
type Stream struct {
	events   <-chan models.ProgressEvent
	finished chan struct{}
	err      error
}

// Events returns the progress events. The channel is closed when the run ends.
func (s *Stream) Events() <-chan models.ProgressEvent {
	return s.events
}

// Err blocks until the run ends and returns its error.
// A nil error means the stream ended with the done sentinel.
func (s *Stream) Err() error {
	<-s.finished
	return s.err
}

// Advance starts or resumes the job. If the job is finished or another
// worker owns it, the stream holds only the done sentinel.
func (o *Orchestrator) Advance(ctx context.Context, jobID string) (interfaces.ProgressStream, error) {
	record, err := o.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	owner := o.newOwner()
	claimed, err := state.NextState(record.Job, state.Claim{OwnerToken: owner, TTL: o.config.LeaseTTL}, now)
	if err != nil {
		if errors.Is(err, state.ErrInvalidTransition) {
			o.logger.Info().
				Str("job_id", jobID).
				Str("state", string(record.Job.State)).
				Msg("Job already running or completed")
			return o.doneStream(jobID), nil
		}
		return nil, err
	}

	revision, err := o.store.Put(ctx, claimed, record.Revision)
	if err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) {
			o.logger.Info().Str("job_id", jobID).Msg("Job claimed by another worker")
			return o.doneStream(jobID), nil
		}
		return nil, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}

	o.logger.Info().
		Str("job_id", jobID).
		Str("stage", string(claimed.Stage)).
		Int("attempt", claimed.Attempts).
		Msg("Job claimed")

	emitter := o.newEmitter(jobID, claimed.Logs)
	stream := &Stream{events: emitter.Events(), finished: make(chan struct{})}
	r := &run{
		o:        o,
		jobID:    jobID,
		job:      claimed,
		revision: revision,
		owner:    owner,
		emitter:  emitter,
		logger:   o.logger.WithCorrelationId(jobID),
	}

	runCtx := context.WithoutCancel(ctx)
	common.SafeGo(o.logger, "search-"+jobID, func() {
		r.finish(stream, r.executeLeased(runCtx))
	}, func(recovered interface{}) {
		r.finish(stream, fmt.Errorf("search pipeline panicked: %v", recovered))
	})

	return stream, nil
}

func (o *Orchestrator) newEmitter(jobID string, seed []string) *progress.Emitter {
	opts := []progress.Option{progress.WithClock(o.now)}
	if o.events != nil {
		opts = append(opts, progress.WithEventService(o.events))
	}
	return progress.NewEmitter(jobID, seed, progress.DefaultBuffer, o.logger, opts...)
}

// doneStream answers a start that found nothing to do. Its sentinel stays
// off the event bus, where it would end the watchers of a live run.
func (o *Orchestrator) doneStream(jobID string) *Stream {
	emitter := progress.NewEmitter(jobID, nil, 1, o.logger, progress.WithClock(o.now))
	emitter.Done()
	emitter.Close()

	finished := make(chan struct{})
	close(finished)
	return &Stream{events: emitter.Events(), finished: finished}
}

// run is one execution of the pipeline. job is the working copy and
// revision the store revision of its last successful write; mu guards both
// while the heartbeat is running.
type run struct {
	o       *Orchestrator
	jobID   string
	owner   string
	emitter *progress.Emitter
	logger  arbor.ILogger

	mu       sync.Mutex
	job      models.SearchJob
	revision uint64
}

// executeLeased runs the pipeline while a heartbeat keeps the lease alive.
// Losing the lease cancels the in-flight stage.
func (r *run) executeLeased(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := make(chan struct{})
	stopped := make(chan struct{})
	common.SafeGo(r.logger, "lease-"+r.jobID, func() {
		defer close(stopped)
		r.heartbeat(ctx, stop, cancel)
	}, nil)
	defer func() {
		close(stop)
		<-stopped
	}()

	err := r.execute(ctx)
	if err != nil && !errors.Is(err, ErrLeaseLost) && errors.Is(context.Cause(ctx), ErrLeaseLost) {
		err = fmt.Errorf("%w: %w", ErrLeaseLost, err)
	}
	return err
}

// heartbeat renews the lease every third of its TTL until stop is closed
func (r *run) heartbeat(ctx context.Context, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := r.o.config.LeaseTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			err := r.renew(ctx)
			if err == nil {
				continue
			}
			if errors.Is(err, ErrLeaseLost) {
				r.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("Lease lost, cancelling run")
				cancel(ErrLeaseLost)
				return
			}
			r.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("Lease renewal failed")
		}
	}
}

func (r *run) renew(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job.State != models.JobStateRunning {
		return nil
	}
	next, err := state.NextState(r.job, state.Renew{OwnerToken: r.owner, TTL: r.o.config.LeaseTTL}, r.o.now())
	if err != nil {
		return err
	}

	revision, err := r.o.store.Put(ctx, next, r.revision)
	if err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) {
			return fmt.Errorf("renew: %w", ErrLeaseLost)
		}
		return fmt.Errorf("failed to renew lease: %w", err)
	}
	r.job = next
	r.revision = revision
	return nil
}

func (r *run) current() models.SearchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

func (r *run) execute(ctx context.Context) error {
	target := r.o.config.TargetPlaces

	if job := r.current(); job.Stage == models.JobStageInitial {
		r.emitter.Step("Search started...", 0)

		venues, err := r.o.aggregator.Collect(ctx, job.Input.FavoriteMealName, job.Location.Coordinates, r.emitter)
		if err != nil {
			return fmt.Errorf("place search failed: %w", err)
		}
		if err := r.persist(ctx, state.PlacesFetched{Venues: venues}); err != nil {
			return err
		}
	}

	if job := r.current(); job.Stage == models.JobStagePlacesFetched {
		if len(job.PlacesFetched) >= target {
			r.emitter.Reach("Summarizing results...", summarizeProgress)
		}

		top := job.PlacesFetched
		if len(top) > target {
			top = top[:target]
		}

		descriptions, thumbnails, err := r.o.enricher.Enrich(ctx, top, r.emitter)
		if err != nil {
			return fmt.Errorf("enrichment failed: %w", err)
		}

		r.emitter.Reach("Almost done! Parsing results...", parsingProgress)

		if err := r.persist(ctx, state.Enriched{Descriptions: descriptions, Thumbnails: thumbnails}); err != nil {
			return err
		}
	}

	if job := r.current(); job.Stage == models.JobStageParsing {
		places := state.Join(job.PlacesFetched, job.Descriptions, job.Thumbnails, target)
		duration := r.o.now().Sub(job.CreatedAt).Seconds()
		r.emitter.Complete(fmt.Sprintf("Search completed successfully in %.1fs", duration))

		if err := r.persist(ctx, state.Completed{Places: places, Logs: r.emitter.Logs()}); err != nil {
			return err
		}
	}

	return nil
}

// persist applies t to the working copy and writes it at the current
// revision. Running jobs get their lease renewed in the same write.
func (r *run) persist(ctx context.Context, t state.Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.o.now()

	next, err := state.NextState(r.job, t, now)
	if err != nil {
		return err
	}
	if next.State == models.JobStateRunning {
		next, err = state.NextState(next, state.Renew{OwnerToken: r.owner, TTL: r.o.config.LeaseTTL}, now)
		if err != nil {
			return err
		}
	}

	revision, err := r.o.store.Put(ctx, next, r.revision)
	if err != nil {
		if errors.Is(err, interfaces.ErrRevisionMismatch) {
			return fmt.Errorf("%s: %w", t.Name(), ErrLeaseLost)
		}
		return fmt.Errorf("failed to persist %s: %w", t.Name(), err)
	}

	r.job = next
	r.revision = revision

	r.logger.Debug().
		Str("transition", t.Name()).
		Str("stage", string(next.Stage)).
		Msg("Stage persisted")
	return nil
}

func (r *run) finish(stream *Stream, err error) {
	switch {
	case err == nil:
		r.emitter.Done()
		r.logger.Info().Str("job_id", r.job.ID).Int("places", len(r.job.Places)).Msg("Search job finished")
	case errors.Is(err, ErrLeaseLost):
		r.logger.Warn().Err(err).Str("job_id", r.job.ID).Msg("Search job abandoned, lease lost")
	default:
		r.logger.Error().Err(err).Str("job_id", r.job.ID).Str("stage", string(r.job.Stage)).Msg("Search job failed")
		r.fail(err)
	}

	stream.err = err
	r.emitter.Close()
	close(stream.finished)

	r.publishFinished(err)
}

// fail records the failure with every log line emitted so far
func (r *run) fail(cause error) {
	ctx := context.Background()

	next, err := state.NextState(r.job, state.Failed{Err: cause, Logs: r.emitter.Logs()}, r.o.now())
	if err != nil {
		r.logger.Error().Err(err).Str("job_id", r.job.ID).Msg("Failed to build failure record")
		return
	}

	if _, err := r.o.store.Put(ctx, next, r.revision); err != nil {
		r.logger.Error().Err(err).Str("job_id", r.job.ID).Msg("Failed to persist failure record")
		return
	}
	r.job = next
}

func (r *run) publishFinished(runErr error) {
	if r.o.events == nil {
		return
	}

	payload := map[string]interface{}{
		"job_id": r.job.ID,
		"state":  string(r.job.State),
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}

	if err := r.o.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventSearchFinished,
		Payload: payload,
	}); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to publish search finished event")
	}
}
