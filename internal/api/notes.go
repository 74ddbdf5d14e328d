package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/keyforge/keyforge/internal/interfaces"
	"github.com/keyforge/keyforge/internal/logger"
)

type noteRequest struct {
	Title string `json:"title"`
	Note  string `json:"note"`
}

// noteOwner resolves the owner scope for a request. Callers that send
// no X-Owner header share the default scope.
func noteOwner(r *http.Request) string {
	if owner := r.Header.Get("X-Owner"); owner != "" {
		return owner
	}
	return interfaces.DefaultOwner
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	now := time.Now()
	note := &interfaces.Note{
		Owner:     noteOwner(r),
		ID:        uuid.New().String(),
		Title:     req.Title,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.notes.CreateNote(r.Context(), note); err != nil {
		log.Error().Err(err).Msg("Failed to create note")
		writeError(w, http.StatusInternalServerError, "failed to create note")
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCorrelationID(getCorrelationID(r.Context()))

	notes, err := s.notes.ListNotes(r.Context(), noteOwner(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list notes")
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	if notes == nil {
		notes = []*interfaces.Note{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notes": notes,
		"count": len(notes),
	})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := s.notes.GetNote(r.Context(), noteOwner(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get note")
		return
	}

	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	owner, id := noteOwner(r), chi.URLParam(r, "id")
	note := &interfaces.Note{Owner: owner, ID: id, Title: req.Title, Note: req.Note}

	if err := s.notes.UpdateNote(r.Context(), note); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update note")
		return
	}

	updated, err := s.notes.GetNote(r.Context(), owner, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read back note")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	err := s.notes.DeleteNote(r.Context(), noteOwner(r), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			writeError(w, http.StatusNotFound, "note not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete note")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
