package api

import (
	"net/http"

	"finmentor/internal/auth"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	u, err := s.deps.Users.Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	u, err := s.deps.Users.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	sess := s.deps.Sessions.Create(u)
	s.log.Info("user logged in", "user_id", u.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token": sess.Token,
		"user":  u,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	s.deps.Sessions.Destroy(sess.Token)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeDomainError(w, s.log, err)
		return
	}
	out := map[string]any{
		"user_id":  sess.UserID,
		"username": sess.Username,
		"streak":   sess.Streak(),
	}
	if s.deps.Users != nil {
		tut, err := s.deps.Users.Tutorial(r.Context(), sess.UserID)
		if err != nil {
			writeDomainError(w, s.log, err)
			return
		}
		out["tutorial"] = tut
	}
	writeJSON(w, http.StatusOK, out)
}
