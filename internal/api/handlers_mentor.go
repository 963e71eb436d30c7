package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finmentor/internal/apperr"
	"finmentor/internal/mentor"
	"finmentor/internal/watchlist"
)

func (s *Server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"topics": mentor.Topics()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	reply, err := s.deps.Mentor.Chat(r.Context(), sess, in.Message)
	var ee *apperr.ExternalError
	if errors.As(err, &ee) {
		s.log.Warn("mentor chat failed", "user_id", sess.UserID, "err", ee.Err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "mentor is unavailable right now", "reply": reply})
		return
	}
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reply":   reply,
		"history": sess.ChatHistory(),
	})
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	sess.ResetChat()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	q, found, err := s.deps.Market.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no market data for "+chi.URLParam(r, "symbol"))
		return
	}
	h, err := s.deps.Mentor.HealthScore(r.Context(), q)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.deps.Watchlist.List(r.Context(), sess)})
}

func (s *Server) handleWatchAdd(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	var in struct {
		Symbol string `json:"symbol"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	item, err := s.deps.Watchlist.Add(r.Context(), sess, in.Symbol)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]watchlist.Item{"item": item})
}

func (s *Server) handleWatchRemove(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	removed, err := s.deps.Watchlist.Remove(sess, chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
