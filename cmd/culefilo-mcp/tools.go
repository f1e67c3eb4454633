package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchDishTool returns the search_dish tool definition
func createSearchDishTool() mcp.Tool {
	return mcp.NewTool("search_dish",
		mcp.WithDescription("Find nearby restaurants serving a dish and wait for the enriched results"),
		mcp.WithString("favorite_meal_name",
			mcp.Required(),
			mcp.Description("Dish to look for (1-30 characters)"),
		),
		mcp.WithString("location_query",
			mcp.Required(),
			mcp.Description("Human readable location, e.g. \"Austin, TX\""),
		),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Latitude in decimal degrees"),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Longitude in decimal degrees"),
		),
	)
}

// createGetSearchTool returns the get_search tool definition
func createGetSearchTool() mcp.Tool {
	return mcp.NewTool("get_search",
		mcp.WithDescription("Retrieve a search job with its places and progress log"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Search job ID"),
		),
	)
}

// createListSearchesTool returns the list_searches tool definition
func createListSearchesTool() mcp.Tool {
	return mcp.NewTool("list_searches",
		mcp.WithDescription("List past searches, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}
