// Package app wires the storage, services and handlers of the search server.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/common"
	"github.com/ternarybob/culefilo/internal/handlers"
	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/jobs/orchestrator"
	"github.com/ternarybob/culefilo/internal/jobs/state"
	"github.com/ternarybob/culefilo/internal/services/events"
	"github.com/ternarybob/culefilo/internal/services/jobs"
	"github.com/ternarybob/culefilo/internal/services/llm"
	"github.com/ternarybob/culefilo/internal/services/places"
	"github.com/ternarybob/culefilo/internal/services/scheduler"
	"github.com/ternarybob/culefilo/internal/services/search"
	"github.com/ternarybob/culefilo/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StorageManager interfaces.StorageManager
	JobStore       *state.Store

	// Services
	EventService     *events.Service
	PlacesService    *places.Service
	ProviderFactory  *llm.ProviderFactory
	LLMService       *llm.Service
	Orchestrator     *orchestrator.Orchestrator
	JobService       *jobs.Service
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	SearchHandler *handlers.SearchHandler
	StreamHandler *handlers.StreamHandler
	WSHandler     *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	if err := app.SchedulerService.Start(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Str("storage", cfg.Storage.Type).
		Str("llm_provider", string(cfg.LLM.DefaultProvider)).
		Int("target_places", cfg.Search.TargetPlaces).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the key/value storage layer
func (a *App) initDatabase() error {
	ctx := context.Background()

	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("storage", a.Config.Storage.Type).
		Msg("Storage layer initialized")

	// Load variables from files (e.g. API keys, secrets)
	if err := a.StorageManager.LoadVariablesFromFiles(ctx, a.Config.Variables.Dir); err != nil {
		// Log warning but don't fail startup
		a.Logger.Warn().Err(err).Msg("Failed to load variables from files")
	}

	a.JobStore = state.NewStore(a.StorageManager.KeyValueStorage(), a.Logger)
	return nil
}

// initServices initializes all business services in dependency order.
// Gateways first, then the pipeline stages, then the orchestrator and the
// services sharing its store.
func (a *App) initServices() error {
	kv := a.StorageManager.KeyValueStorage()

	// 1. Event bus
	a.EventService = events.NewService(a.Logger)
	if err := events.SubscribeLoggerToAllEvents(a.EventService, a.Logger); err != nil {
		return fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	// 2. Gateways
	a.PlacesService = places.NewService(&a.Config.PlacesAPI, kv, a.Logger)
	a.ProviderFactory = llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, kv, a.Logger)
	a.LLMService = llm.NewService(a.ProviderFactory, &a.Config.LLM, &a.Config.Gemini, a.Logger)

	// 3. Pipeline stages
	aggregator := search.NewAggregator(a.PlacesService, a.LLMService, &a.Config.Search, a.Logger)
	enricher := search.NewEnricher(a.PlacesService, a.LLMService, &a.Config.Search, a.Logger)

	// 4. Orchestrator and job management
	a.Orchestrator = orchestrator.New(a.JobStore, aggregator, enricher, a.EventService, &a.Config.Search, a.Logger)
	a.JobService = jobs.NewService(a.JobStore, a.Logger)
	a.SchedulerService = scheduler.NewService(a.JobStore, a.EventService, &a.Config.Scheduler, a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.JobService, a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.Orchestrator, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.JobService, a.EventService, &a.Config.WebSocket, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	// Stop scheduler service
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Close LLM clients
	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM provider factory")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
