package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/activitylog/internal/repository"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type callerKey struct{}

// CallerResolver resolves the caller bound to a bearer token.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (repository.Caller, error)
}

// CallerFromContext returns the caller from context, if present.
func CallerFromContext(ctx context.Context) (repository.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(repository.Caller)
	return caller, ok
}

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller repository.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// AuthMiddleware enforces bearer token authentication. Browsers cannot set
// headers on WebSocket upgrades, so a token query parameter is accepted too.
func AuthMiddleware(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			caller, err := resolver.ResolveCaller(r.Context(), token)
			if err != nil || caller.ProfileID == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// StaticCallerMiddleware acts as caller for every request. Used when auth is
// disabled.
func StaticCallerMiddleware(caller repository.Caller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
