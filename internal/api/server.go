package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/jobs"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/websocket"
)

type Server struct {
	manager *jobs.Manager
	store   interfaces.ResultStore
	notes   interfaces.NoteStore
	hub     *websocket.Hub
	httpSrv *http.Server
	port    string
}

func NewServer(manager *jobs.Manager, store interfaces.ResultStore, notes interfaces.NoteStore, hub *websocket.Hub, port string) *Server {
	s := &Server{
		manager: manager,
		store:   store,
		notes:   notes,
		hub:     hub,
		port:    port,
	}

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	logger.Logger.Info().Str("addr", s.httpSrv.Addr).Msg("Starting API server")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
