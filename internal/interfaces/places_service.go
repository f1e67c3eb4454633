package interfaces

import (
	"context"

	"github.com/ternarybob/culefilo/internal/models"
)

// PlacesService defines the interface for Google Places API operations
type PlacesService interface {
	// Search runs a text search for restaurants around coords.
	// Venues are returned in API order. Missing optional fields are left empty.
	Search(ctx context.Context, text string, coords models.Coordinates) ([]models.Venue, error)

	// DownloadPhoto fetches the image bytes for a photo reference name
	DownloadPhoto(ctx context.Context, photoName string) ([]byte, error)
}
