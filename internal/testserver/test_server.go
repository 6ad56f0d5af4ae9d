package testserver

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpggio/activitylog/internal/app"
	"github.com/rpggio/activitylog/internal/config"
	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/domain/feature"
	"github.com/rpggio/activitylog/internal/repository"
	"github.com/rpggio/activitylog/internal/sqlite"
	"github.com/stretchr/testify/require"
)

// Whitelisted is the extension id allowed to use activityLogPrivate.
const Whitelisted = "whitelisted-extension"

type TestServer struct {
	Server    *httptest.Server
	App       *app.App
	DB        *sqlite.DB
	Token     string
	ProfileID string
}

// New starts a server over an in-memory database with one profile and a
// token bound to the whitelisted extension.
func New(t *testing.T, token, profileID string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	cfg := config.Default()
	cfg.Profiles = []string{profileID}

	features := feature.NewProvider(feature.Feature{
		Name:      feature.ActivityLogPrivate,
		Whitelist: []string{Whitelisted},
	})

	a, err := app.New(cfg, db, features, nil)
	require.NoError(t, err)

	server := httptest.NewServer(a.HTTPHandler())

	ts := &TestServer{
		Server:    server,
		App:       a,
		DB:        db,
		Token:     token,
		ProfileID: profileID,
	}

	require.NoError(t, ts.AddAPIKey(token, profileID, Whitelisted))

	t.Cleanup(func() {
		server.Close()
		a.Close()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey binds token to a caller.
func (ts *TestServer) AddAPIKey(token, profileID, extensionID string) error {
	return ts.App.APIKeys.Create(context.Background(), &repository.APIKey{
		KeyHash:     sqlite.HashToken(token),
		ProfileID:   profileID,
		ExtensionID: extensionID,
	})
}

// Record appends an action to the server's profile.
func (ts *TestServer) Record(t *testing.T, action activity.Action) activity.Action {
	t.Helper()
	require.NoError(t, ts.App.Resolver.RecordAction(context.Background(), ts.ProfileID, &action))
	return action
}
