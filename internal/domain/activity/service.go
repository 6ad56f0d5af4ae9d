package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rpggio/activitylog/internal/domain/feature"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/profile"
)

// State is the lifecycle position of a Service.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ServiceDeps are the collaborators of a Service.
type ServiceDeps struct {
	Profile *profile.Profile
	// Router is nil in degenerate configurations; the service then stays
	// uninitialized.
	Router   EventRouter
	Store    Store
	Features FeatureProvider
	Logger   *slog.Logger
}

// Service bridges a profile's action store to event listeners and hosts the
// query and delete surface of the activity log API.
type Service struct {
	profile  *profile.Profile
	router   EventRouter
	store    Store
	features FeatureProvider
	logger   *slog.Logger

	state atomic.Int32
	life  *lifetime
}

// NewService creates the service and, when an event router is present,
// registers it with the router and the store. It panics if a router is
// present but the store is not.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		profile:  deps.Profile,
		router:   deps.Router,
		store:    deps.Store,
		features: deps.Features,
		logger:   logger.With("component", "activity_log", "profile_id", deps.Profile.ID()),
		life:     newLifetime(),
	}

	if s.router == nil {
		s.logger.Debug("event router does not exist, activity log left uninitialized")
		return s
	}
	if s.store == nil {
		panic("activity: no action store for profile " + deps.Profile.ID())
	}

	s.router.RegisterObserver(s, EventOnExtensionActivity)
	s.store.AddObserver(s)
	s.state.Store(int32(StateInitialized))
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Shutdown unregisters from the router and the store. Only the first call
// after initialization does any work.
func (s *Service) Shutdown() {
	defer s.life.end()
	if !s.state.CompareAndSwap(int32(StateInitialized), int32(StateShutDown)) {
		s.logger.Debug("shutdown without registration", "state", s.State().String())
		return
	}
	s.router.UnregisterObserver(s)
	s.store.RemoveObserver(s)
	s.logger.Debug("activity log shut down")
}

// IsExtensionWhitelisted reports whether extensionID may call the
// activityLogPrivate API.
func (s *Service) IsExtensionWhitelisted(extensionID string) bool {
	return IsExtensionWhitelisted(s.features, extensionID)
}

// IsExtensionWhitelisted reports whether extensionID is on the whitelist of
// the activityLogPrivate feature held by provider.
func IsExtensionWhitelisted(provider FeatureProvider, extensionID string) bool {
	if provider == nil {
		return false
	}
	return provider.GetFeature(feature.ActivityLogPrivate).IsIDInWhitelist(extensionID)
}

// OnActionAppended implements Observer.
func (s *Service) OnActionAppended(action Action) {
	s.OnExtensionActivity(action)
}

// OnExtensionActivity broadcasts action to the profile's listeners. The
// router hands the event off without waiting for delivery.
func (s *Service) OnExtensionActivity(action Action) {
	if s.State() != StateInitialized {
		return
	}
	s.router.BroadcastEvent(&events.Event{
		Name:              EventOnExtensionActivity,
		Args:              []any{action.ToExtensionActivity()},
		RestrictToProfile: s.profile.ID(),
	})
}

// OnListenerAdded implements events.Observer. Store observation does not
// depend on listener count.
func (s *Service) OnListenerAdded(info events.ListenerInfo) {
	s.logger.Debug("activity listener added", "listener_id", info.ListenerID)
}

// OnListenerRemoved implements events.Observer.
func (s *Service) OnListenerRemoved(info events.ListenerInfo) {
	s.logger.Debug("activity listener removed", "listener_id", info.ListenerID)
}

// GetExtensionActivities issues a filtered query. done runs on the profile's
// sequence unless the service shuts down first, in which case it never runs.
func (s *Service) GetExtensionActivities(ctx context.Context, filter Filter, done func(ActivityResultSet, error)) (Pending, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	life := s.life
	return s.store.GetFilteredActions(ctx, filter, s.profile.Sequence(), func(actions []Action, err error) {
		if !life.alive() {
			s.logger.Debug("dropping query result after shutdown")
			return
		}
		if err != nil {
			done(ActivityResultSet{}, fmt.Errorf("query activities: %w", err))
			return
		}
		done(NewResultSet(actions), nil)
	}), nil
}

type queryResult struct {
	set ActivityResultSet
	err error
}

// QueryActivities runs GetExtensionActivities and waits for its result, the
// caller's context, or shutdown, whichever comes first.
func (s *Service) QueryActivities(ctx context.Context, filter Filter) (ActivityResultSet, error) {
	results := make(chan queryResult, 1)
	pending, err := s.GetExtensionActivities(ctx, filter, func(set ActivityResultSet, err error) {
		results <- queryResult{set: set, err: err}
	})
	if err != nil {
		return ActivityResultSet{}, err
	}

	select {
	case r := <-results:
		return r.set, r.err
	case <-ctx.Done():
		pending.Cancel()
		return ActivityResultSet{}, ctx.Err()
	case <-s.life.Done():
		pending.Cancel()
		return ActivityResultSet{}, ErrServiceShutDown
	}
}

// DeleteActivities removes the actions with the given ids.
func (s *Service) DeleteActivities(ctx context.Context, ids []int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.RemoveActions(ctx, ids); err != nil {
		return fmt.Errorf("remove actions: %w", err)
	}
	return nil
}

// DeleteURLs removes actions referencing any of urls.
func (s *Service) DeleteURLs(ctx context.Context, urls []URL) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.RemoveURLs(ctx, urls); err != nil {
		return fmt.Errorf("remove urls: %w", err)
	}
	return nil
}

// DeleteDatabase purges every action of the profile.
func (s *Service) DeleteDatabase(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.DeleteDatabase(ctx); err != nil {
		return fmt.Errorf("delete database: %w", err)
	}
	s.logger.Info("activity database purged")
	return nil
}

func (s *Service) ready() error {
	switch s.State() {
	case StateInitialized:
		return nil
	case StateShutDown:
		return ErrServiceShutDown
	default:
		return ErrServiceUnavailable
	}
}
