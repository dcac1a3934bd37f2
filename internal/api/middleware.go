package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prompt-clan/prompt-arena/internal/auth"
)

// AuthMiddleware validates session tokens on protected routes
type AuthMiddleware struct {
	tokens *auth.TokenManager
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(tokens *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the session token from the Authorization header.
// Supports "Bearer <token>" or the bare token; websocket clients may pass
// it as the "token" query parameter instead.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing_token", "provide Authorization header with Bearer token")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			slog.Warn("invalid session token", "remote_addr", r.RemoteAddr, "error", err)
			respondError(w, http.StatusUnauthorized, "invalid_token", "the session token is not valid")
			return
		}

		ctx := ContextWithSession(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
		return header
	}
	return r.URL.Query().Get("token")
}
