package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/culefilo/internal/app"
	"github.com/ternarybob/culefilo/internal/common"
)

func main() {
	configPath := os.Getenv("CULEFILO_CONFIG")
	if configPath == "" {
		configPath = "culefilo.toml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The sweep belongs to the HTTP server
	config.Scheduler.Enabled = false

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"culefilo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchDishTool(), handleSearchDish(application.JobService, application.Orchestrator, logger))
	mcpServer.AddTool(createGetSearchTool(), handleGetSearch(application.JobService, logger))
	mcpServer.AddTool(createListSearchesTool(), handleListSearches(application.JobService, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
