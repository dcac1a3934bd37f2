package api

import (
	"context"

	"github.com/prompt-clan/prompt-arena/internal/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext extracts the authenticated session claims
func SessionFromContext(ctx context.Context) *auth.Claims {
	claims, ok := ctx.Value(sessionContextKey).(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}

// ContextWithSession adds session claims to context
func ContextWithSession(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}
