package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket progress mirror
	mux.HandleFunc("/ws/search/", s.app.WSHandler.HandleSearchWebSocket)

	// API routes - Search jobs
	mux.HandleFunc("/api/search", s.app.SearchHandler.CreateHandler) // POST - create job
	mux.HandleFunc("/api/search/", s.handleSearchRoutes)             // GET /{id}, GET /{id}/stream, POST /{id}/retry
	mux.HandleFunc("/api/history", s.app.SearchHandler.HistoryHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSearchRoutes dispatches /api/search/{id} and its subpaths
func (s *Server) handleSearchRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/search/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}

	if len(parts) == 1 {
		s.app.SearchHandler.GetHandler(w, r)
		return
	}

	matched := RouteByPathSuffix(w, r, "/api/search/", []PathSuffixRouter{
		{Suffix: "/stream", Handler: s.app.StreamHandler.StreamHandler},
		{Suffix: "/retry", Handler: s.app.SearchHandler.RetryHandler},
	})
	if !matched {
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
