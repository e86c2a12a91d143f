// Package server exposes the provisioning API surface. The handlers are thin
// by design: they authenticate the caller, resolve an integration from the
// registry and translate lifecycle outcomes into transport responses. All
// account mutation happens inside the integrations.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allthingslinux/provisiond/internal/database"
	"github.com/allthingslinux/provisiond/internal/integration"
	"github.com/allthingslinux/provisiond/pkg/models"
)

type contextKey string

const userContextKey contextKey = "user"

// Server holds the API dependencies
type Server struct {
	db       *database.DB
	registry *integration.Registry
	logger   *slog.Logger
}

// New creates the API server
func New(db *database.DB, registry *integration.Registry, logger *slog.Logger) *Server {
	return &Server{
		db:       db,
		registry: registry,
		logger:   logger.With("component", "server"),
	}
}

// Router builds the HTTP routing tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/_health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/integrations", s.listIntegrations)

		r.Route("/integrations/{integration}/accounts", func(r chi.Router) {
			r.Use(s.requireSession)
			r.Get("/", s.getOwnAccount)
			r.Post("/", s.createAccount)
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", s.getAccount)
				r.Patch("/", s.updateAccount)
				r.Delete("/", s.deleteAccount)
			})
		})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

// requireSession resolves the caller from a bearer token or session cookie.
// The portal owns the session and user tables; this middleware only reads
// them.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := s.db.GetSession(r.Context(), token)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		if err != nil {
			s.logger.Error("failed to resolve session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if session.Expired(time.Now()) {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}

		user, err := s.db.GetUserByID(r.Context(), session.UserID)
		if err != nil {
			s.logger.Error("failed to load session user", "user_id", session.UserID, "error", err)
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, found := strings.CutPrefix(auth, "Bearer "); found {
			return token
		}
		return ""
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}

func userFrom(r *http.Request) *models.User {
	user, _ := r.Context().Value(userContextKey).(*models.User)
	return user
}
