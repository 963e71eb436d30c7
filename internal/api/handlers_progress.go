package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"finmentor/internal/game"
	"finmentor/internal/progress"
)

func (s *Server) handlePredictionRound(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	round, err := s.deps.Game.Round(r.Context(), sess, chi.URLParam(r, "symbol"))
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	var in struct {
		Symbol    string `json:"symbol"`
		Direction string `json:"direction"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	up, err := game.ParseDirection(in.Direction)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	res, err := s.deps.Game.Predict(r.Context(), sess.UserID, sess, in.Symbol, up)
	if err != nil && res.Symbol == "" {
		writeDomainError(w, s.log, err)
		return
	}
	out := map[string]any{"result": res}
	if err != nil {
		s.log.Warn("achievement evaluation failed after prediction", "user_id", sess.UserID, "err", err)
		out["warning"] = "your prediction was saved but achievements could not be checked"
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	sum, err := s.deps.Ledger.Summary(r.Context(), sess.UserID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": sum,
		"streak":  sess.Streak(),
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	badges, err := s.deps.Ledger.Evaluate(r.Context(), sess.UserID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	if badges == nil {
		badges = []progress.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_badges": badges})
}

func (s *Server) handleTutorial(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	st, err := s.deps.Users.Tutorial(r.Context(), sess.UserID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTutorialAdvance(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	st, err := s.deps.Users.AdvanceTutorial(r.Context(), sess.UserID)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
