package main

import (
	"fmt"
	"strings"

	"github.com/ternarybob/culefilo/internal/models"
)

// formatSearch formats a search job as markdown. Thumbnails are omitted.
func formatSearch(view models.SearchJobView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s near %s\n\n", view.Input.FavoriteMealName, view.Input.LocationQuery))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", view.ID))
	sb.WriteString(fmt.Sprintf("**State:** %s\n", view.State))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", view.CreatedAt))
	if view.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", view.Error))
	}
	sb.WriteString("\n")

	if len(view.Places) == 0 {
		sb.WriteString("No places found.\n")
	}
	for i, place := range view.Places {
		sb.WriteString(fmt.Sprintf("## %d. %s\n", i+1, place.Name))
		sb.WriteString(fmt.Sprintf("**Address:** %s\n", place.Address))
		sb.WriteString(fmt.Sprintf("**Rating:** %.1f (%d reviews)\n", place.Rating, place.RatingCount))
		if place.PriceLevel != "" {
			sb.WriteString(fmt.Sprintf("**Price:** %s\n", place.PriceLevel))
		}
		if place.OpenNow != nil {
			sb.WriteString(fmt.Sprintf("**Open now:** %t\n", *place.OpenNow))
		}
		if place.URL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", place.URL))
		}
		if place.Description != nil && *place.Description != "" {
			sb.WriteString("\n")
			sb.WriteString(*place.Description)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(view.Logs) > 0 {
		sb.WriteString("## Progress\n")
		for _, line := range view.Logs {
			sb.WriteString(fmt.Sprintf("- %s\n", line))
		}
	}

	return sb.String()
}

// formatHistory formats past searches as a markdown list
func formatHistory(views []models.SearchJobView, limit int) string {
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Searches (%d)\n\n", len(views)))
	if len(views) == 0 {
		sb.WriteString("No searches yet.\n")
		return sb.String()
	}

	for _, view := range views {
		sb.WriteString(fmt.Sprintf("- **%s** near %s: %s, %d places (%s, id %s)\n",
			view.Input.FavoriteMealName, view.Input.LocationQuery, view.State, len(view.Places), view.CreatedAt, view.ID))
	}
	return sb.String()
}
