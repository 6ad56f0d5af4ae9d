package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/activitylog/internal/repository"
	"github.com/stretchr/testify/require"
)

type testResolver struct {
	callers map[string]repository.Caller
	err     error
}

func (r *testResolver) ResolveCaller(_ context.Context, token string) (repository.Caller, error) {
	if r.err != nil {
		return repository.Caller{}, r.err
	}
	caller, ok := r.callers[token]
	if !ok {
		return repository.Caller{}, ErrUnauthorized
	}
	return caller, nil
}

func newTestResolver() *testResolver {
	return &testResolver{callers: map[string]repository.Caller{
		"token": {ProfileID: "p1", ExtensionID: "ext1"},
	}}
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(newTestResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, repository.Caller{ProfileID: "p1", ExtensionID: "ext1"}, caller)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	handler := AuthMiddleware(newTestResolver())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?token=token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	resolver := &testResolver{err: errors.New("invalid")}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaticCallerMiddleware(t *testing.T) {
	want := repository.Caller{ProfileID: "default", ExtensionID: "local"}
	handler := StaticCallerMiddleware(want)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, want, caller)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
