package handlers

import (
	"context"

	"github.com/ternarybob/culefilo/internal/models"
	"github.com/ternarybob/culefilo/internal/services/jobs"
)

// SearchJobService is the job management surface used by the HTTP handlers
type SearchJobService interface {
	Create(ctx context.Context, req jobs.CreateRequest) (string, error)
	Get(ctx context.Context, id string) (*models.SearchJob, error)
	Retry(ctx context.Context, id string, resume bool) error
	History(ctx context.Context) ([]models.SearchJobView, error)
}
