package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

type readinessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Store     string    `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Service:   "api-service",
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Service:   "api-service",
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, readinessResponse{
			Status:    "not ready",
			Timestamp: time.Now(),
			Service:   "api-service",
			Store:     "disconnected",
		})
		return
	}

	writeJSON(w, http.StatusOK, readinessResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Service:   "api-service",
		Store:     "connected",
	})
}
