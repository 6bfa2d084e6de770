// Package server provides the HTTP server for the posture correction service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	// ConfigPath receives settings changed through the API. Empty keeps
	// changes in memory.
	ConfigPath string
	Session    *app.Session
}

// Server represents the HTTP server for the posture application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if session := s.config.Session; session != nil {
		components := api.NewComponentsHandler(session)
		s.mux.Handle("/api/components", components)
		s.mux.Handle("/api/components/", components)

		s.mux.Handle("/api/reference", api.NewActiveReferenceHandler(session))
		s.mux.Handle("/api/compare", api.NewCompareHandler(session))
		s.mux.Handle("/api/identify", api.NewIdentifyHandler(session))
		s.mux.Handle("/api/settings", api.NewSettingsHandler(session, s.config.ConfigPath))
		s.mux.Handle("/api/enabled", api.NewEnabledHandler(session))
		s.mux.Handle("/api/results", NewResultsHandler(session))
		s.mux.Handle("/api/stream", NewStreamHandler(session))

		// Stored references need the database.
		if st := session.Store(); st != nil {
			references := api.NewReferenceHandler(session, st)
			s.mux.Handle("/api/references", references)
			s.mux.Handle("/api/references/", references)
		}
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Session != nil {
		response["running"] = s.config.Session.Running()
		response["enabled"] = s.config.Session.IsEnabled()
		_, _, hasRef := s.config.Session.Reference()
		response["reference"] = hasRef
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Handler returns an *http.Server bound to addr so callers can shut it
// down gracefully.
func (s *Server) Handler(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
