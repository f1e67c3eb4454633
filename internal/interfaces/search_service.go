package interfaces

import (
	"context"

	"github.com/ternarybob/culefilo/internal/models"
)

// ProgressReporter receives progress from pipeline stages.
// Implementations must be safe for concurrent use.
type ProgressReporter interface {
	// Step adds increment to the current progress and reports msg
	Step(msg string, increment float64)

	// Reach raises the progress to at least target and reports msg
	Reach(msg string, target float64)
}

// PlaceAggregator collects unique venues serving a dish near coordinates
type PlaceAggregator interface {
	Collect(ctx context.Context, dish string, coords models.Coordinates, progress ProgressReporter) ([]models.Venue, error)
}

// PlaceEnricher produces descriptions and thumbnails for venues, keyed by venue id
type PlaceEnricher interface {
	Enrich(ctx context.Context, venues []models.Venue, progress ProgressReporter) (descriptions, thumbnails map[string]string, err error)
}

// ProgressStream delivers the progress of one run
type ProgressStream interface {
	// Events is closed when the run ends
	Events() <-chan models.ProgressEvent

	// Err blocks until the run ends. Nil means the stream ended with the done sentinel.
	Err() error
}

// JobRunner starts or resumes search jobs
type JobRunner interface {
	Advance(ctx context.Context, jobID string) (ProgressStream, error)
}
