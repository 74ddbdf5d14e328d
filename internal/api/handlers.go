package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
	"github.com/keyforge/keyforge/internal/websocket"
)

type submitRequest struct {
	KeyType interfaces.KeyType `json:"key_type,omitempty"`
	KeyBits int                `json:"key_bits,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// resultResponse shapes GET /result output. Key material only appears
// on complete records; error_message only on errors.
type resultResponse struct {
	RequestID    string             `json:"request_id"`
	Status       interfaces.Status  `json:"status"`
	KeyType      interfaces.KeyType `json:"key_type,omitempty"`
	KeyBits      int                `json:"key_bits,omitempty"`
	PublicKey    string             `json:"public_key_b64,omitempty"`
	PrivateKey   string             `json:"private_key_b64,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	// An empty body is a valid submission; every field has a default.
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("Invalid JSON request")
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	job := &interfaces.JobRequest{KeyType: req.KeyType, KeyBits: req.KeyBits}
	rec, err := s.manager.Submit(r.Context(), job)
	if err != nil {
		if interfaces.IsValidation(err) {
			log.Warn().Err(err).Msg("Submission rejected")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to submit request")
		writeError(w, http.StatusInternalServerError, "failed to submit request")
		return
	}

	websocket.BroadcastStatusUpdate(s.hub, rec)
	log.Info().Str("request_id", rec.RequestID).Msg("Request accepted")
	writeJSON(w, http.StatusAccepted, submitResponse{
		RequestID: rec.RequestID,
		Status:    string(rec.Status),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	rec, err := s.manager.Result(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown or expired request id")
			return
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("Failed to read result")
		writeError(w, http.StatusInternalServerError, "failed to read result")
		return
	}

	resp := resultResponse{
		RequestID:    rec.RequestID,
		Status:       rec.Status,
		KeyType:      rec.KeyType,
		KeyBits:      rec.KeyBits,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
	}
	if rec.Status == interfaces.StatusComplete {
		resp.PublicKey = rec.PublicKey
		resp.PrivateKey = rec.PrivateKey
	}

	writeJSON(w, http.StatusOK, resp)
}
