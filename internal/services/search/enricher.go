package search

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

// ThumbnailPrefix starts every thumbnail data URI
const ThumbnailPrefix = "data:image/jpeg;base64,"

const (
	summarizeVenueProgress = 0.01
	fetchPhotosProgress    = 0.05
	captionProgress        = 0.01
	chooseThumbProgress    = 0.05
)

// Enricher derives a description and a thumbnail for each venue
type Enricher struct {
	places interfaces.PlacesService
	llm    interfaces.LLMService
	config common.SearchConfig
	logger arbor.ILogger
}

// NewEnricher creates a venue enricher
func NewEnricher(places interfaces.PlacesService, llm interfaces.LLMService, config *common.SearchConfig, logger arbor.ILogger) *Enricher {
	return &Enricher{
		places: places,
		llm:    llm,
		config: *config,
		logger: logger,
	}
}

// Enrich runs the description and thumbnail work of every venue concurrently.
// Venues without reviews or usable photos get no entry. The first error cancels the rest.
func (e *Enricher) Enrich(ctx context.Context, venues []models.Venue, progress interfaces.ProgressReporter) (map[string]string, map[string]string, error) {
	var mu sync.Mutex
	descriptions := make(map[string]string)
	thumbnails := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	for _, venue := range venues {
		venue := venue

		g.Go(func() error {
			description, err := e.describe(gctx, venue, progress)
			if err != nil || description == "" {
				return err
			}
			mu.Lock()
			descriptions[venue.ID] = description
			mu.Unlock()
			return nil
		})

		g.Go(func() error {
			thumbnail, err := e.thumbnail(gctx, venue, progress)
			if err != nil || thumbnail == "" {
				return err
			}
			mu.Lock()
			thumbnails[venue.ID] = thumbnail
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return descriptions, thumbnails, nil
}

func (e *Enricher) describe(ctx context.Context, venue models.Venue, progress interfaces.ProgressReporter) (string, error) {
	progress.Step(fmt.Sprintf(`Summarizing "%s"...`, venue.DisplayName), summarizeVenueProgress)

	if len(venue.Reviews) == 0 {
		e.logger.Debug().Str("venue", venue.ID).Msg("No reviews to summarize")
		return "", nil
	}

	summary, err := e.llm.Summarize(ctx, venue.Reviews)
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", venue.DisplayName, err)
	}
	return strings.TrimSpace(summary), nil
}

type captionedPhoto struct {
	data    []byte
	caption string
}

func (e *Enricher) thumbnail(ctx context.Context, venue models.Venue, progress interfaces.ProgressReporter) (string, error) {
	progress.Step(fmt.Sprintf(`Fetching photos for "%s"...`, venue.DisplayName), fetchPhotosProgress)

	photos := venue.Photos
	if len(photos) > e.config.MaxPhotos {
		photos = photos[:e.config.MaxPhotos]
	}

	results := make([]captionedPhoto, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		i, photo := i, photo
		g.Go(func() error {
			data, err := e.places.DownloadPhoto(gctx, photo.Name)
			if err != nil {
				return fmt.Errorf("download photo %s: %w", photo.Name, err)
			}
			caption, err := e.llm.Caption(gctx, data)
			if err != nil {
				return fmt.Errorf("caption photo %s: %w", photo.Name, err)
			}

			progress.Step(fmt.Sprintf(`Image #%d for "%s" to text...`, i+1, venue.DisplayName), captionProgress)
			results[i] = captionedPhoto{data: data, caption: strings.TrimSpace(caption)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	usable := make([]captionedPhoto, 0, len(results))
	captions := make([]string, 0, len(results))
	for _, r := range results {
		if r.caption == "" || len(r.data) == 0 {
			continue
		}
		usable = append(usable, r)
		captions = append(captions, r.caption)
	}
	if len(usable) == 0 {
		e.logger.Debug().Str("venue", venue.ID).Int("photos", len(photos)).Msg("No usable captions, skipping thumbnail")
		return "", nil
	}

	progress.Step(fmt.Sprintf(`Choosing thumbnail for "%s"...`, venue.DisplayName), chooseThumbProgress)

	reply, err := e.llm.Complete(ctx, rankingPrompt(venue.DisplayName, captions), rankingInstruction)
	if err != nil {
		return "", fmt.Errorf("rank captions for %q: %w", venue.DisplayName, err)
	}

	choice := ParseRanking(reply, len(usable))
	e.logger.Debug().Str("venue", venue.ID).Str("reply", reply).Int("choice", choice+1).Msg("Thumbnail chosen")

	return ThumbnailPrefix + base64.StdEncoding.EncodeToString(usable[choice].data), nil
}
