// Package server exposes the comparison engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ChamsBouzaiene/modelarena/internal/comparison"
	"github.com/ChamsBouzaiene/modelarena/internal/config"
	"github.com/ChamsBouzaiene/modelarena/internal/logger"
	"github.com/ChamsBouzaiene/modelarena/internal/provider"
)

// Server wires the HTTP API and WebSocket control channel to the engine.
type Server struct {
	cfg      *config.Config
	service  *comparison.Service
	reader   SessionReader
	registry *provider.Registry
	server   *http.Server
}

// NewServer creates a server over the given collaborators.
func NewServer(cfg *config.Config, service *comparison.Service, reader SessionReader, registry *provider.Registry) *Server {
	return &Server{
		cfg:      cfg,
		service:  service,
		reader:   reader,
		registry: registry,
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("POST /api/comparisons", s.handleCreateComparison)
	mux.HandleFunc("GET /api/comparisons", s.handleListComparisons)
	mux.HandleFunc("GET /api/comparisons/{id}", s.handleGetComparison)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
// Write timeouts stay unset because /ws connections are long-lived.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
	}

	go s.handleShutdown()

	logger.Info("server started", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) handleShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
