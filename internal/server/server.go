// Package server provides the HTTP server for the Mudra hand-sign service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
const ShutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Store     *store.Store
	Device    *capture.Device
}

// Server represents the HTTP server for the Mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *ResultsHub
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewResultsHub(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/results", s.hub)

	if s.config.App != nil {
		classify := api.NewClassifyHandler(s.config.App, s.config.Store)
		s.mux.Handle("/api/classify", classify)
		s.mux.Handle("/classify", classify)
		s.mux.Handle("/api/labels", api.NewLabelsHandler(s.config.App.Labels()))
	}

	// Sample collection and history need the database
	if s.config.Store != nil {
		if s.config.App != nil {
			samples := api.NewSamplesHandler(s.config.App, s.config.Store)
			s.mux.Handle("/api/samples", samples)
			s.mux.Handle("/api/samples/", samples)
		}
		s.mux.Handle("/api/predictions", api.NewPredictionsHandler(s.config.Store))
	}

	// Register camera stream endpoint if a device is configured
	if s.config.App != nil && s.config.Device != nil {
		stream := NewStreamHandler(s.config.App, s.config.Device, s.hub)
		s.mux.Handle("/api/stream", stream)
		s.mux.Handle("/video_feed", stream)
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

// Hub returns the live results hub.
func (s *Server) Hub() *ResultsHub {
	return s.hub
}

type modelStatus struct {
	Loaded   bool   `json:"loaded"`
	Kind     string `json:"kind,omitempty"`
	Classes  int    `json:"classes,omitempty"`
	Features int    `json:"features,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Error    string `json:"error,omitempty"`
}

type cameraStatus struct {
	Configured bool `json:"configured"`
	Busy       bool `json:"busy"`
}

type healthResponse struct {
	Status  string       `json:"status"`
	Uptime  string       `json:"uptime"`
	Model   modelStatus  `json:"model"`
	Camera  cameraStatus `json:"camera"`
	Viewers int          `json:"viewers"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := healthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.start).Round(time.Second).String(),
		Viewers: s.hub.Clients(),
	}

	if s.config.App != nil {
		response.Uptime = s.config.App.Uptime().Round(time.Second).String()
		info, err := s.config.App.ModelInfo()
		if err != nil {
			response.Model.Error = err.Error()
		} else {
			response.Model = modelStatus{
				Loaded:   true,
				Kind:     info.Kind,
				Classes:  info.Classes,
				Features: info.Features,
				Digest:   info.Digest,
			}
		}
	} else {
		response.Model.Error = "not configured"
	}

	if s.config.Device != nil {
		response.Camera = cameraStatus{Configured: true, Busy: s.config.Device.InUse()}
	}

	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts end with ctx so open streams stop on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
