package functional_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/testserver"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func rpcCall(t *testing.T, ts *testserver.TestServer, token, method string, params any) rpcResponse {
	t.Helper()

	payload := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		payload["params"] = params
	}

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewBuffer(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(bodyBytes))
	}

	var result rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return result
}

func listActivities(t *testing.T, ts *testserver.TestServer, filter map[string]any) []activity.ExtensionActivity {
	t.Helper()
	resp := rpcCall(t, ts, ts.Token, "activityLogPrivate.getExtensionActivities", map[string]any{"filter": filter})
	require.Nil(t, resp.Error, "RPC error: %v", resp.Error)

	var set activity.ActivityResultSet
	require.NoError(t, json.Unmarshal(resp.Result, &set))
	return set.Activities
}

func TestFunctional_Authentication(t *testing.T) {
	ts := testserver.New(t, "token", "p1")

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc",
		bytes.NewBufferString(`{"jsonrpc":"2.0","method":"activityLogPrivate.deleteDatabase","id":1}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestFunctional_RecordQueryDelete(t *testing.T) {
	ts := testserver.New(t, "token", "p1")

	for _, args := range []map[string]any{
		{"extensionId": "ext", "activityType": "api_call", "apiCall": "tabs.query", "pageUrl": "http://a.com/"},
		{"extensionId": "ext", "activityType": "web_request", "argUrl": "http://b.com/x.js"},
		{"extensionId": "other", "activityType": "dom_event", "pageUrl": "http://a.com/page"},
	} {
		resp := rpcCall(t, ts, ts.Token, "activityLog.recordAction", args)
		require.Nil(t, resp.Error, "record failed: %v", resp.Error)
	}

	require.Len(t, listActivities(t, ts, map[string]any{}), 3)
	require.Len(t, listActivities(t, ts, map[string]any{"extensionId": "ext"}), 2)
	require.Len(t, listActivities(t, ts, map[string]any{"pageUrl": "http://a.com/"}), 2)
	require.Len(t, listActivities(t, ts, map[string]any{"activityType": "web_request", "daysAgo": 0}), 1)

	resp := rpcCall(t, ts, ts.Token, "activityLogPrivate.deleteUrls", map[string]any{"urls": []string{"http://b.com/x.js"}})
	require.Nil(t, resp.Error)
	require.Len(t, listActivities(t, ts, map[string]any{}), 2)

	first := listActivities(t, ts, map[string]any{})[0]
	resp = rpcCall(t, ts, ts.Token, "activityLogPrivate.deleteActivities", map[string]any{"activityIds": []string{first.ActivityID, "nope"}})
	require.Nil(t, resp.Error)
	require.Len(t, listActivities(t, ts, map[string]any{}), 1)

	resp = rpcCall(t, ts, ts.Token, "activityLogPrivate.deleteDatabase", nil)
	require.Nil(t, resp.Error)
	require.Empty(t, listActivities(t, ts, map[string]any{}))
}

func TestFunctional_ErrorCodes(t *testing.T) {
	ts := testserver.New(t, "token", "p1")
	require.NoError(t, ts.AddAPIKey("stranger-token", "p1", "stranger"))

	resp := rpcCall(t, ts, "stranger-token", "activityLogPrivate.deleteDatabase", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32003, resp.Error.Code)
	require.Equal(t, "NOT_WHITELISTED", resp.Error.Data["code"])

	resp = rpcCall(t, ts, ts.Token, "activityLogPrivate.getExtensionActivities", map[string]any{"filter": map[string]any{"activityType": "keystrokes"}})
	require.NotNil(t, resp.Error)
	require.Equal(t, -32602, resp.Error.Code)

	resp = rpcCall(t, ts, ts.Token, "activityLogPrivate.getExtensionActivities", map[string]any{})
	require.NotNil(t, resp.Error)
	require.Equal(t, -32602, resp.Error.Code)

	resp = rpcCall(t, ts, ts.Token, "activityLogPrivate.explode", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, -32601, resp.Error.Code)

	require.NoError(t, ts.AddAPIKey("ghost-token", "ghost", testserver.Whitelisted))
	resp = rpcCall(t, ts, "ghost-token", "activityLogPrivate.deleteDatabase", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, "UNKNOWN_PROFILE", resp.Error.Data["code"])
}

func TestFunctional_EventStream(t *testing.T) {
	ts := testserver.New(t, "token", "p1")
	require.NoError(t, ts.AddAPIKey("stranger-token", "p1", "stranger"))

	wsBase := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/events"

	_, resp, err := websocket.DefaultDialer.Dial(wsBase+"?token=stranger-token", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+ts.Token)
	conn, _, err := websocket.DefaultDialer.Dial(wsBase, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return ts.App.Router.ListenerCount(activity.EventOnExtensionActivity) == 1
	}, 2*time.Second, 10*time.Millisecond)

	recorded := rpcCall(t, ts, ts.Token, "activityLog.recordAction", map[string]any{
		"extensionId":  "ext",
		"activityType": "content_script",
		"pageUrl":      "http://c.com/",
		"args":         `["inject.js"]`,
	})
	require.Nil(t, recorded.Error)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt struct {
		Name string                       `json:"name"`
		Args []activity.ExtensionActivity `json:"args"`
	}
	require.NoError(t, json.Unmarshal(msg, &evt))
	require.Equal(t, activity.EventOnExtensionActivity, evt.Name)
	require.Len(t, evt.Args, 1)
	require.Equal(t, activity.TypeContentScript, evt.Args[0].ActivityType)
	require.Equal(t, `["inject.js"]`, evt.Args[0].Args)
}
