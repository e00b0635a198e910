package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pageforge/session"
	"pageforge/snapshot"
)

// sessionEnvelope is the response body shape for single-session endpoints.
type sessionEnvelope struct {
	Session *session.Session `json:"session"`
}

// handleStart creates a capture session.
// POST /clone/session/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.orch.Create(r.Context(), &req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionEnvelope{Session: sess})
}

// handleFinish ends a capture session and triggers analysis.
// POST /clone/session/finish
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req session.FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.orch.Finish(r.Context(), &req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sess})
}

// handleChunk ingests one snapshot chunk.
// POST /clone/session/{sessionID}/chunk
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	var c snapshot.Chunk
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxChunkBytes())
	if err := json.NewDecoder(body).Decode(&c); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "chunk exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The path is authoritative; a mismatched body sessionId is rejected
	// rather than silently rerouted.
	pathID := chi.URLParam(r, "sessionID")
	if c.SessionID == "" {
		c.SessionID = pathID
	} else if c.SessionID != pathID {
		writeError(w, http.StatusBadRequest, "body sessionId does not match path")
		return
	}

	prog, err := s.orch.IngestChunk(r.Context(), &c)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, prog)
}

// handleGet returns one session.
// GET /clone/session/{sessionID}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sess})
}

// handleList returns sessions newest-first.
// GET /clone/sessions
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.orch.List(r.Context(), 0)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// respondError maps domain errors to HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidScope),
		errors.Is(err, snapshot.ErrBadChunk):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, snapshot.ErrSequence),
		errors.Is(err, snapshot.ErrCountMismatch):
		// Ordering violations mean the capture stream itself went wrong, not
		// just one request; report them as server-side failures with detail.
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
