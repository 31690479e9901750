package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Project-Sylos/Mirage/internal/logger"
	"github.com/Project-Sylos/Mirage/internal/types"
	"github.com/Project-Sylos/Mirage/sdk"
	"github.com/go-chi/chi/v5"
)

// Server represents the HTTP API server
type Server struct {
	router *chi.Mux
	m      *sdk.Mirage
	config *types.APIConfig
	http   *http.Server
}

// NewServer creates a new API server
func NewServer(m *sdk.Mirage) *Server {
	cfg := &m.Config().API
	router := NewRouter(m).SetupRoutes()

	return &Server{
		router: router,
		m:      m,
		config: cfg,
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Addr is the listen address
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	logger.Info("starting Mirage API server: addr=%s", s.http.Addr)
	logger.Info("graph endpoints available at http://%s/v1.0/", s.http.Addr)
	logger.Info("health check available at http://%s/health", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// GetRouter returns the configured router
func (s *Server) GetRouter() *chi.Mux {
	return s.router
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then closes the emulator
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return s.m.Close()
}
