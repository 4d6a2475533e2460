// Package middleware provides HTTP middleware for the shipment API.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lamdp/shiptrack/internal/core/auth"
	"github.com/lamdp/shiptrack/internal/core/domain"
	"github.com/lamdp/shiptrack/internal/shell/store"
)

// =============================================================================
// Session Resolver Interface
// =============================================================================

// SessionResolver turns a bearer token into a user. The store implements
// this interface.
type SessionResolver interface {
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
}

// =============================================================================
// Auth Configuration
// =============================================================================

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// Sessions resolves bearer tokens. Required.
	Sessions SessionResolver

	// Logger for auth middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware resolves the Authorization bearer token into an auth
// context and stores it in the request context. Requests without a token
// pass through unauthenticated; route groups decide what they require.
type AuthMiddleware struct {
	config AuthConfig
}

// NewAuthMiddleware creates a new auth middleware with the given config.
func NewAuthMiddleware(cfg AuthConfig) *AuthMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AuthMiddleware{config: cfg}
}

// Handler returns the middleware handler function.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.config.Sessions.GetSession(r.Context(), token)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				m.config.Logger.Error("failed to resolve session", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to resolve session")
				return
			}
			// Unknown token: proceed unauthenticated
			next.ServeHTTP(w, r)
			return
		}

		if session.IsExpired(time.Now()) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.config.Sessions.GetUser(r.Context(), session.Username)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				m.config.Logger.Error("failed to load session user", "username", session.Username, "error", err)
				writeJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to resolve session")
				return
			}
			// User deleted after login: token no longer valid
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(auth.WithContext(r.Context(), auth.FromUser(user)))
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// =============================================================================
// Require Auth Middleware
// =============================================================================

// RequireAuth rejects requests without a valid session.
// Must be used AFTER AuthMiddleware.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.FromContext(r.Context())

			if !ctx.Authenticated {
				logger.Warn("unauthenticated request to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests from non-admin accounts.
// Must be used AFTER AuthMiddleware.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.FromContext(r.Context())

			if !ctx.Authenticated {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !ctx.IsAdmin {
				logger.Warn("non-admin request to admin endpoint",
					"username", ctx.Username,
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeJSONError(w, http.StatusForbidden, "Forbidden", "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSONError writes an error response in the API's standard shape.
func writeJSONError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error: detail,
		Code:  strings.ToLower(strings.ReplaceAll(title, " ", "_")),
	})
}
