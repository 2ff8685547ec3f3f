// Package api provides HTTP handlers and the main API server logic for ConsultFlow.
//
// It exposes RESTful endpoints for the marketing and mental health agents,
// PHQ-9 screening and saved project retrieval.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modubiz/ConsultFlow/internal/flow"
	"github.com/modubiz/ConsultFlow/internal/store"
)

// Server configuration constants
const (
	// DefaultAddr is the default listen address for the API server
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds how long reading a request may take
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds how long writing a response may take
	DefaultWriteTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server hosts the HTTP API over the two conversation engines and the store.
type Server struct {
	marketing *flow.MarketingEngine
	mental    *flow.MentalHealthEngine
	store     store.Store
	addr      string
	httpSrv   *http.Server
}

// NewServer wires an API server around the given engines and store.
func NewServer(marketing *flow.MarketingEngine, mental *flow.MentalHealthEngine, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		marketing: marketing,
		mental:    mental,
		store:     st,
		addr:      cfg.Addr,
	}
}

// routes builds the HTTP mux for the server.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/marketing/query", s.marketingQueryHandler)
	mux.HandleFunc("/marketing/status", s.marketingStatusHandler)
	mux.HandleFunc("/marketing/reset", s.marketingResetHandler)
	mux.HandleFunc("/mental/query", s.mentalQueryHandler)
	mux.HandleFunc("/mental/status", s.mentalStatusHandler)
	mux.HandleFunc("/mental/reset", s.mentalResetHandler)
	mux.HandleFunc("/mental/phq9/start", s.surveyStartHandler)
	mux.HandleFunc("/mental/phq9/answer", s.surveyAnswerHandler)
	mux.HandleFunc("/mental/phq9/status", s.surveyStatusHandler)
	mux.HandleFunc("/projects", s.projectsHandler)
	mux.HandleFunc("/status", s.statusHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown failed: %w", err)
		}
		return nil
	}
}
