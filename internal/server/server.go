// Package server provides the yubimoji HTTP server: the JSON API, the
// websocket result stream, the MJPEG preview and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/yubimoji/internal/classifier"
	"github.com/ayusman/yubimoji/internal/observe"
	"github.com/ayusman/yubimoji/internal/server/api"
	"github.com/ayusman/yubimoji/internal/store"
)

// Config holds the server configuration. Routes whose dependencies are nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Session   api.Session
	Reloader  api.Reloader
	Trainer   *classifier.Trainer
	Hub       *Hub
	Preview   *Preview
	// Metrics instruments every request. Nil disables the middleware.
	Metrics *observe.Metrics
	// MetricsHandler serves /metrics, typically promhttp.Handler().
	MetricsHandler http.Handler
}

// Server represents the HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()

	s.handler = s.mux
	if config.Metrics != nil {
		s.handler = observe.Middleware(config.Metrics)(s.mux)
	}
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Session != nil {
		s.mux.Handle("/api/frames", api.NewFrameHandler(s.config.Session))
		s.mux.Handle("/api/session", api.NewSessionHandler(s.config.Session))
	}

	if s.config.Store != nil {
		trainer := s.config.Trainer
		if trainer == nil {
			trainer = classifier.NewTrainer(1)
		}
		samples := api.NewSamplesHandler(s.config.Store, trainer, s.config.Reloader)
		symbols := api.NewSymbolHandler(s.config.Store, s.config.Reloader, samples)
		s.mux.Handle("/api/symbols", symbols)
		s.mux.Handle("/api/symbols/", symbols)

		rules := api.NewRuleHandler(s.config.Store, s.config.Reloader)
		s.mux.Handle("/api/rules", rules)
		s.mux.Handle("/api/rules/", rules)

		transcripts := api.NewTranscriptHandler(s.config.Store)
		s.mux.Handle("/api/transcripts", transcripts)
		s.mux.Handle("/api/transcripts/", transcripts)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/ws", s.config.Hub)
	}

	if s.config.Preview != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Preview))
	}

	if s.config.MetricsHandler != nil {
		s.mux.Handle("/metrics", s.config.MetricsHandler)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Session != nil {
		response["sessionId"] = s.config.Session.Snapshot().SessionID
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.config.Hub != nil {
		s.config.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
