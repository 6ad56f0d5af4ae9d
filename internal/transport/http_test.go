package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/activitylog/internal/repository"
	"github.com/stretchr/testify/require"
)

type codedTestError struct {
	code string
}

func (e codedTestError) Error() string             { return "coded: " + e.code }
func (e codedTestError) CodeValue() string         { return e.code }
func (e codedTestError) RecoveryHintValue() string { return "hint" }

type testHandler struct {
	method string
	caller repository.Caller
	err    error
}

func (h *testHandler) Handle(_ context.Context, caller repository.Caller, method string, _ json.RawMessage) (any, error) {
	h.method = method
	h.caller = caller
	if h.err != nil {
		return nil, h.err
	}
	return map[string]string{"status": "ok"}, nil
}

func postRPC(t *testing.T, url, token, body string) (*http.Response, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/rpc", bytes.NewBufferString(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out Response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHTTPServer_RPC(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(Options{Handler: handler, Auth: AuthMiddleware(newTestResolver())}))
	t.Cleanup(server.Close)

	resp, out := postRPC(t, server.URL, "token", `{"jsonrpc":"2.0","method":"activityLogPrivate.deleteDatabase","id":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, out.Error)
	require.Equal(t, "activityLogPrivate.deleteDatabase", handler.method)
	require.Equal(t, "ext1", handler.caller.ExtensionID)
}

func TestHTTPServer_RPCUnauthenticated(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(Options{Handler: handler, Auth: AuthMiddleware(newTestResolver())}))
	t.Cleanup(server.Close)

	resp, _ := postRPC(t, server.URL, "", `{"jsonrpc":"2.0","method":"x","id":1}`)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, handler.method)
}

func TestHTTPServer_RPCErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{codedTestError{"INVALID_PARAMS"}, ErrInvalidParams},
		{codedTestError{"NOT_WHITELISTED"}, ErrNotWhitelistedCode},
		{codedTestError{"UNAUTHORIZED"}, ErrUnauthorizedCode},
		{codedTestError{"METHOD_NOT_FOUND"}, ErrMethodNotFound},
		{codedTestError{"SERVICE_SHUT_DOWN"}, ErrServiceCode},
		{codedTestError{"SOMETHING_ELSE"}, ErrInternal},
		{errors.New("boom"), ErrInternal},
	}

	for _, tt := range tests {
		handler := &testHandler{err: tt.err}
		server := httptest.NewServer(NewServer(Options{Handler: handler, Auth: StaticCallerMiddleware(repository.Caller{ProfileID: "p1"})}))

		_, out := postRPC(t, server.URL, "", `{"jsonrpc":"2.0","method":"m","id":7}`)
		server.Close()

		require.NotNil(t, out.Error, tt.err.Error())
		require.Equal(t, tt.code, out.Error.Code, tt.err.Error())
		require.EqualValues(t, 7, out.ID)
	}
}

func TestHTTPServer_RPCParseError(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{Handler: &testHandler{}, Auth: StaticCallerMiddleware(repository.Caller{ProfileID: "p1"})}))
	t.Cleanup(server.Close)

	_, out := postRPC(t, server.URL, "", `{"jsonrpc":`)
	require.NotNil(t, out.Error)
	require.Equal(t, ErrParseCode, out.Error.Code)

	_, out = postRPC(t, server.URL, "", `{"jsonrpc":"1.0","method":"m"}`)
	require.NotNil(t, out.Error)
	require.Equal(t, ErrInvalidReq, out.Error.Code)
}

func TestHTTPServer_Health(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{Handler: &testHandler{}}))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_CORS(t *testing.T) {
	server := httptest.NewServer(NewServer(Options{
		Handler:        &testHandler{},
		AllowedOrigins: []string{"http://allowed.example"},
	}))
	t.Cleanup(server.Close)

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/rpc", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://allowed.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "http://allowed.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTPServer_MCPMounted(t *testing.T) {
	mcpHit := false
	server := httptest.NewServer(NewServer(Options{
		Handler: &testHandler{},
		MCP: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mcpHit = true
			w.WriteHeader(http.StatusAccepted)
		}),
	}))
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/mcp", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.True(t, mcpHit)
}
