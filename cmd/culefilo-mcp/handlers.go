package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/culefilo/internal/interfaces"
	"github.com/ternarybob/culefilo/internal/models"
	"github.com/ternarybob/culefilo/internal/services/jobs"
)

// searchJobs is the part of the job service the tools need
type searchJobs interface {
	Create(ctx context.Context, req jobs.CreateRequest) (string, error)
	Get(ctx context.Context, id string) (*models.SearchJob, error)
	History(ctx context.Context) ([]models.SearchJobView, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchDish implements the search_dish tool
func handleSearchDish(jobService searchJobs, runner interfaces.JobRunner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meal, err := request.RequireString("favorite_meal_name")
		if err != nil || meal == "" {
			return textResult("Error: favorite_meal_name parameter is required"), nil
		}
		location, err := request.RequireString("location_query")
		if err != nil || location == "" {
			return textResult("Error: location_query parameter is required"), nil
		}
		latitude, err := request.RequireFloat("latitude")
		if err != nil {
			return textResult("Error: latitude parameter is required"), nil
		}
		longitude, err := request.RequireFloat("longitude")
		if err != nil {
			return textResult("Error: longitude parameter is required"), nil
		}

		id, err := jobService.Create(ctx, jobs.CreateRequest{
			FavoriteMealName: meal,
			LocationQuery:    location,
			Latitude:         &latitude,
			Longitude:        &longitude,
		})
		if err != nil {
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		stream, err := runner.Advance(ctx, id)
		if err != nil {
			logger.Error().Err(err).Str("job_id", id).Msg("Failed to start search")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		for range stream.Events() {
		}
		if err := stream.Err(); err != nil {
			logger.Warn().Err(err).Str("job_id", id).Msg("Search failed")
		}

		job, err := jobService.Get(ctx, id)
		if err != nil {
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}
		return textResult(formatSearch(jobs.Serialize(job))), nil
	}
}

// handleGetSearch implements the get_search tool
func handleGetSearch(jobService searchJobs, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil || id == "" {
			return textResult("Error: id parameter is required"), nil
		}

		job, err := jobService.Get(ctx, id)
		if err != nil {
			logger.Error().Err(err).Str("job_id", id).Msg("Get search failed")
			return textResult(fmt.Sprintf("Search not found: %v", err)), nil
		}
		return textResult(formatSearch(jobs.Serialize(job))), nil
	}
}

// handleListSearches implements the list_searches tool
func handleListSearches(jobService searchJobs, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)

		views, err := jobService.History(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("List searches failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}
		return textResult(formatHistory(views, limit)), nil
	}
}
