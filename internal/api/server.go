package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finmentor/internal/apperr"
	"finmentor/internal/auth"
	"finmentor/internal/config"
	"finmentor/internal/game"
	"finmentor/internal/market"
	"finmentor/internal/mentor"
	"finmentor/internal/progress"
	"finmentor/internal/watchlist"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Deps are the services behind the routes. Users, Ledger and Game are nil
// without a database; Mentor is nil without an API key. The routes that
// need a missing service answer 503.
type Deps struct {
	Users     *auth.Service
	Sessions  *auth.Manager
	Ledger    *progress.Ledger
	Market    *market.Gateway
	Game      *game.Service
	Mentor    *mentor.Service
	Watchlist *watchlist.Service
}

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	deps Deps
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Sessions == nil {
		deps.Sessions = auth.NewManager(cfg.SessionTTL)
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		deps: deps,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/market/{symbol}/quote", s.handleQuote)
		r.Get("/market/{symbol}/history", s.handleHistory)
		r.Get("/market/{symbol}/dividends", s.handleDividends)

		r.Group(func(r chi.Router) {
			r.Use(s.requireFeature("accounts", "DATABASE_URL", s.deps.Users != nil))
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Group(func(r chi.Router) {
				r.Use(s.requireFeature("progress", "DATABASE_URL", s.deps.Ledger != nil && s.deps.Game != nil && s.deps.Users != nil))
				r.Get("/games/prediction/{symbol}", s.handlePredictionRound)
				r.Post("/games/prediction", s.handlePredict)
				r.Get("/progress", s.handleProgress)
				r.Post("/progress/evaluate", s.handleEvaluate)
				r.Get("/tutorial", s.handleTutorial)
				r.Post("/tutorial/advance", s.handleTutorialAdvance)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireFeature("mentor", "GEMINI_API_KEY", s.deps.Mentor != nil))
				r.Get("/mentor/topics", s.handleTopics)
				r.Post("/mentor/chat", s.handleChat)
				r.Delete("/mentor/chat", s.handleChatReset)
				r.Get("/market/{symbol}/health", s.handleHealthScore)
			})

			r.Get("/watchlist", s.handleWatchlist)
			r.Post("/watchlist", s.handleWatchAdd)
			r.Delete("/watchlist/{symbol}", s.handleWatchRemove)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"features": map[string]bool{
			"persistence": s.deps.Ledger != nil,
			"mentor":      s.deps.Mentor != nil,
		},
	})
}

func (s *Server) requireFeature(feature, missing string, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				writeDomainError(w, s.log, apperr.Unavailable(feature, missing))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Sessions.Get(bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeDomainError(w, s.log, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (*auth.Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*auth.Session)
	if !ok || sess == nil {
		return nil, apperr.Unauthorized("missing auth context")
	}
	return sess, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return apperr.Invalid("", "invalid request body: "+err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func writeDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		ve *apperr.ValidationError
		ae *apperr.AuthError
		ee *apperr.ExternalError
		se *apperr.StorageError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.As(err, &ae), errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, game.ErrAlreadyPlayed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, game.ErrNotEnoughData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &ee):
		log.Warn("external service failed", "service", ee.Service, "err", ee.Err)
		writeError(w, http.StatusBadGateway, ee.Service+" is unavailable right now, please try again later")
	case errors.As(err, &se):
		log.Error("storage failed", "op", se.Op, "err", se.Err)
		writeError(w, http.StatusInternalServerError, "could not "+se.Op+", please try again")
	default:
		log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
