package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Runs (experiment run management)
	mux.HandleFunc("/api/runs", s.handleRunsRoute)  // GET (list), POST (submit batch)
	mux.HandleFunc("/api/runs/", s.handleRunRoutes) // poll, cancel, /{id} and subpaths

	// API routes - Slots
	mux.HandleFunc("/api/slots", s.app.SlotHandler.ListSlotsHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.EngineStatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleRunsRoute routes /api/runs requests (list and submit)
func (s *Server) handleRunsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.RunHandler.ListRunsHandler(w, r)
	case "POST":
		s.app.RunHandler.SubmitHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunRoutes routes run-related requests to the appropriate handler
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/runs/poll
	if path == "/api/runs/poll" {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.RunHandler.PollRunsHandler(w, r)
		return
	}

	// POST /api/runs/cancel
	if path == "/api/runs/cancel" {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.app.RunHandler.CancelBatchHandler(w, r)
		return
	}

	pathSuffix := strings.TrimPrefix(path, "/api/runs/")
	if pathSuffix == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// POST /api/runs/{id}/cancel
	if r.Method == "POST" && strings.HasSuffix(pathSuffix, "/cancel") {
		runID := strings.TrimSuffix(pathSuffix, "/cancel")
		s.app.RunHandler.CancelRunHandler(w, r, runID)
		return
	}

	// GET /api/runs/{id}
	if r.Method == "GET" && !strings.Contains(pathSuffix, "/") {
		s.app.RunHandler.GetRunHandler(w, r, pathSuffix)
		return
	}

	// DELETE /api/runs/{id}
	if r.Method == "DELETE" && !strings.Contains(pathSuffix, "/") {
		s.app.RunHandler.DeleteRunHandler(w, r, pathSuffix)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
