// Package search finds venues serving a dish and enriches them with
// review summaries and thumbnails.
package search

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
)

const (
	primarySearchProgress = 0.10
	suggestionsProgress   = 0.20
	synonymSearchProgress = 0.01
)

// Aggregator collects unique venues for a dish, widening the search with
// LLM-suggested synonyms when the dish name alone finds too few.
type Aggregator struct {
	places interfaces.PlacesService
	llm    interfaces.LLMService
	config common.SearchConfig
	logger arbor.ILogger
}

// NewAggregator creates a place aggregator
func NewAggregator(places interfaces.PlacesService, llm interfaces.LLMService, config *common.SearchConfig, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		places: places,
		llm:    llm,
		config: *config,
		logger: logger,
	}
}

// Collect returns unique venues in the order they were first found.
// Synonym searches run one at a time and stop once the target count is reached.
func (a *Aggregator) Collect(ctx context.Context, dish string, coords models.Coordinates, progress interfaces.ProgressReporter) ([]models.Venue, error) {
	found := newVenueSet()
	target := a.config.TargetPlaces

	search := func(query string, increment float64) error {
		progress.Step(fmt.Sprintf(`Looking for nearby places with "%s"...`, query), increment)

		venues, err := a.places.Search(ctx, query, coords)
		if err != nil {
			return fmt.Errorf("places search for %q: %w", query, err)
		}
		added := found.add(venues)

		a.logger.Debug().
			Str("query", query).
			Int("results", len(venues)).
			Int("new", added).
			Int("total", found.len()).
			Msg("Places search merged")
		return nil
	}

	if err := search(dish, primarySearchProgress); err != nil {
		return nil, err
	}
	if found.len() >= target {
		return found.venues, nil
	}

	progress.Step("Looking for suggestions...", suggestionsProgress)

	reply, err := a.llm.Complete(ctx, synonymPrompt(dish), synonymInstruction)
	if err != nil {
		return nil, fmt.Errorf("synonym suggestions for %q: %w", dish, err)
	}

	synonyms := ParseSynonyms(reply, dish, a.config.MaxSynonyms)
	if len(synonyms) == 0 {
		a.logger.Warn().Str("dish", dish).Str("reply", reply).Msg("No synonyms found")
	} else {
		a.logger.Info().Str("dish", dish).Strs("synonyms", synonyms).Msg("Synonyms suggested")
	}

	for _, synonym := range synonyms {
		if found.len() >= target {
			break
		}
		if err := search(synonym, synonymSearchProgress); err != nil {
			return nil, err
		}
	}

	return found.venues, nil
}

// venueSet keeps venues unique by id in insertion order
type venueSet struct {
	venues []models.Venue
	ids    map[string]struct{}
}

func newVenueSet() *venueSet {
	return &venueSet{ids: make(map[string]struct{})}
}

func (s *venueSet) add(venues []models.Venue) int {
	added := 0
	for _, v := range venues {
		if v.ID == "" {
			continue
		}
		if _, ok := s.ids[v.ID]; ok {
			continue
		}
		s.ids[v.ID] = struct{}{}
		s.venues = append(s.venues, v)
		added++
	}
	return added
}

func (s *venueSet) len() int {
	return len(s.venues)
}
