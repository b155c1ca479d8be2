// Package server provides the HTTP server of formcheck.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/formcheck/internal/angle"
	"github.com/ayusman/formcheck/internal/app"
	"github.com/ayusman/formcheck/internal/server/api"
	"github.com/ayusman/formcheck/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
}

// Server represents the HTTP server of the formcheck application.
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
	s.mux.Handle("/api/angles", api.NewAngleHandler(s.calculator))

	if s.config.Store != nil {
		settings := api.NewSettingsHandler(s.config.Store)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Store != nil && s.config.App != nil {
		analyses := api.NewAnalysisHandler(s.config.Store, s.config.App)
		s.mux.Handle("/api/analyses", analyses)
		s.mux.Handle("/api/analyses/", analyses)
	}

	if s.config.App != nil {
		s.mux.Handle("/api/live", NewLiveHandler(s.config.App))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
		s.mux.HandleFunc("/api/pipeline", s.handlePipeline)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// calculator returns the application's current calculator, or the default
// one when the server runs without an App.
func (s *Server) calculator() *angle.Calculator {
	if s.config.App != nil {
		return s.config.App.Calculator()
	}
	return angle.Default()
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

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type pipelineState struct {
	Running bool          `json:"running"`
	Enabled bool          `json:"enabled"`
	Active  bool          `json:"active"`
	Last    *app.Feedback `json:"last,omitempty"`
}

// handlePipeline reports the live pipeline state on GET and toggles live
// feedback on PUT with {"enabled": bool}.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	a := s.config.App

	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "Expected {\"enabled\": bool}", http.StatusBadRequest)
			return
		}
		a.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := pipelineState{
		Running: a.Running(),
		Enabled: a.IsEnabled(),
		Active:  a.Active(),
	}
	if fb, ok := a.Last(); ok {
		state.Last = &fb
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}
