package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"NewportChat/internal/session"

	"github.com/go-chi/chi/v5"
)

type createRequest struct {
	Widget session.Kind `json:"widget"`
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return nil, false
	}
	return sess, true
}

// handleCreate activates a widget. Seeded widgets fetch their opening
// question before the response is written.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Widget == "" {
		req.Widget = session.KindAssistant
	}

	if s.maxSessions > 0 && s.registry.Count() >= s.maxSessions {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("TOO_MANY_SESSIONS", "Too many open sessions, try again later", r))
		return
	}

	sess, err := s.newSession(req.Widget)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}
	s.registry.Register(sess)

	if err := sess.Start(r.Context()); err != nil {
		s.logger.Error("failed to start session", "session_id", sess.ID(), "error", err)
	}

	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sess.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.exchange(w, r, sess, sess.Draft())
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	s.exchange(w, r, sess, req.Text)
}

// exchange sends text and answers with the snapshot after the reply arrived.
// Workflow failures are part of the transcript, not HTTP errors.
func (s *Server) exchange(w http.ResponseWriter, r *http.Request, sess *session.Session, text string) {
	turn, err := sess.Begin(text)
	if errors.Is(err, session.ErrBusy) {
		writeJSON(w, http.StatusConflict, errorResp("BUSY", "A reply is still pending", r))
		return
	}
	if turn == nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	turn.Complete(r.Context())
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	if err := sess.Clear(r.Context()); err != nil {
		if errors.Is(err, session.ErrBusy) {
			writeJSON(w, http.StatusConflict, errorResp("BUSY", "A reply is still pending", r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to clear session", r))
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.FocusInput()
	w.WriteHeader(http.StatusNoContent)
}
