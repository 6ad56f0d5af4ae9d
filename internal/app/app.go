// Package app assembles the activity log server from its parts.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/activitylog/internal/config"
	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/domain/feature"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/extension"
	"github.com/rpggio/activitylog/internal/keyed"
	"github.com/rpggio/activitylog/internal/mcp"
	"github.com/rpggio/activitylog/internal/profile"
	"github.com/rpggio/activitylog/internal/repository"
	"github.com/rpggio/activitylog/internal/sqlite"
	"github.com/rpggio/activitylog/internal/transport"
)

// App holds the wired components of a running server.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	DB       *sqlite.DB
	APIKeys  repository.APIKeyRepository
	Router   *events.Router
	Features *feature.Provider
	Manager  *keyed.Manager
	Registry *keyed.Registry
	Stores   *keyed.Factory
	Services *keyed.Factory
	Resolver *activity.Resolver
	Handler  *mcp.Handler
	MCP      *sdkmcp.Server

	eventLog  []*events.ChannelListener
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New wires every factory against db and creates the configured profiles.
// features may be nil, in which case no extension is whitelisted.
func New(cfg config.Config, db *sqlite.DB, features *feature.Provider, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if features == nil {
		features = feature.NewProvider()
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		DB:       db,
		APIKeys:  sqlite.NewAPIKeyRepository(db),
		Router:   events.NewRouter(logger),
		Features: features,
		stop:     make(chan struct{}),
	}

	extensions := extension.NewFactory(a.Router)
	a.Stores = sqlite.NewActionStoreFactory(db, sqlite.ActionStoreOptions{
		MaxResults: cfg.Store.MaxResults,
		Workers:    cfg.Store.Workers,
	}, logger)
	a.Services = activity.NewFactory(extensions, a.Stores, features, logger)

	a.Manager = keyed.NewManager(logger)
	a.Manager.Register(a.Services)
	a.Registry = keyed.NewRegistry(a.Manager, logger)

	for _, id := range cfg.Profiles {
		if _, err := a.Registry.Create(id, profile.Options{}); err != nil {
			a.Registry.Close()
			return nil, fmt.Errorf("create profile %q: %w", id, err)
		}
	}

	a.Resolver = activity.NewResolver(a.Registry, a.Services, a.Stores)
	a.Handler = mcp.NewHandler(mcp.FromActivityResolver(a.Resolver), a.Resolver, logger)
	a.MCP = mcp.NewServer(mcp.Config{
		Handler:       a.Handler,
		Resolver:      a,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultCaller: a.DefaultCaller(),
		Logger:        logger,
	})

	if cfg.Events.Log {
		a.startEventLog()
	}

	logger.Info("activity log ready", "profiles", a.Registry.IDs(), "factories", a.Manager.Order())
	return a, nil
}

// DefaultCaller acts for requests when auth is disabled.
func (a *App) DefaultCaller() repository.Caller {
	return repository.Caller{
		ProfileID:   a.cfg.Profiles[0],
		ExtensionID: a.cfg.Auth.DefaultExtensionID,
	}
}

// ResolveCaller maps a bearer token onto its API key's caller.
func (a *App) ResolveCaller(ctx context.Context, token string) (repository.Caller, error) {
	caller, err := a.APIKeys.Resolve(ctx, sqlite.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Caller{}, transport.ErrUnauthorized
		}
		return repository.Caller{}, err
	}
	return caller, nil
}

// AuthorizeEvents admits callers whose extension may use activityLogPrivate.
func (a *App) AuthorizeEvents(caller repository.Caller) error {
	svc, err := a.Resolver.ServiceFor(caller.ProfileID)
	if err != nil {
		return err
	}
	if !svc.IsExtensionWhitelisted(caller.ExtensionID) {
		return activity.ErrNotWhitelisted
	}
	return nil
}

// HTTPHandler serves /rpc, /events, /mcp and /health.
func (a *App) HTTPHandler() http.Handler {
	auth := transport.StaticCallerMiddleware(a.DefaultCaller())
	if a.cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(a)
	}

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return a.MCP },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)

	return transport.NewServer(transport.Options{
		Handler: a.Handler,
		Auth:    auth,
		Events: transport.NewEventsHandler(transport.EventsOptions{
			Router:     a.Router,
			EventName:  activity.EventOnExtensionActivity,
			Authorize:  a.AuthorizeEvents,
			BufferSize: a.cfg.Events.BufferSize,
			Logger:     a.logger,
		}),
		MCP:            mcpHandler,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		Logger:         a.logger,
	})
}

// startEventLog subscribes a listener per configured profile and logs every
// activity it receives.
func (a *App) startEventLog() {
	for _, id := range a.cfg.Profiles {
		l := events.NewChannelListener(id, a.cfg.Events.BufferSize)
		a.Router.AddListener(activity.EventOnExtensionActivity, l)
		a.eventLog = append(a.eventLog, l)

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for {
				select {
				case evt := <-l.Events():
					for _, arg := range evt.Args {
						if act, ok := arg.(activity.ExtensionActivity); ok {
							a.logger.Info("extension activity",
								"profile_id", evt.RestrictToProfile,
								"activity_id", act.ActivityID,
								"extension_id", act.ExtensionID,
								"activity_type", act.ActivityType,
								"api_call", act.APICall)
						}
					}
				case <-a.stop:
					return
				}
			}
		}()
	}
}

// Close stops the event log and destroys every profile, shutting down their
// services.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		for _, l := range a.eventLog {
			a.Router.RemoveListener(activity.EventOnExtensionActivity, l)
			if n := l.Dropped(); n > 0 {
				a.logger.Warn("event log dropped events", "profile_id", l.ProfileID(), "dropped", n)
			}
		}
		close(a.stop)
		a.wg.Wait()
		a.Registry.Close()
	})
}
