package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/activitylog/internal/repository"
)

type contextKey int

const (
	callerKey contextKey = iota
)

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller repository.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext extracts the caller from context.
func CallerFromContext(ctx context.Context) (repository.Caller, bool) {
	caller, ok := ctx.Value(callerKey).(repository.Caller)
	return caller, ok
}

// CallerResolver resolves a caller from a bearer token.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, token string) (repository.Caller, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver CallerResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Skip auth for protocol methods
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", ErrUnauthorized)
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
			}

			caller, err := resolver.ResolveCaller(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
			}
			if caller.ProfileID == "" {
				return nil, fmt.Errorf("%w: invalid bearer token", ErrUnauthorized)
			}

			return next(WithCaller(ctx, caller), method, req)
		}
	}
}

// noAuthMiddleware injects a default caller when auth is disabled.
func noAuthMiddleware(defaultCaller repository.Caller) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(WithCaller(ctx, defaultCaller), method, req)
		}
	}
}
