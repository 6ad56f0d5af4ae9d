package extension

import (
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/keyed"
	"github.com/rpggio/activitylog/internal/profile"
)

// FactoryName identifies the extension system in the keyed service graph.
const FactoryName = "ExtensionSystem"

// System is the per-profile extension runtime. Its event router is nil in
// degenerate test configurations.
type System struct {
	profile *profile.Profile
	router  *events.Router
}

// NewSystem creates a system for p using router, which may be nil.
func NewSystem(p *profile.Profile, router *events.Router) *System {
	return &System{profile: p, router: router}
}

// EventRouter returns the router events are broadcast through, or nil.
func (s *System) EventRouter() *events.Router {
	return s.router
}

func (s *System) Profile() *profile.Profile {
	return s.profile
}

// Shutdown implements keyed.Service. The router outlives profiles, so there
// is nothing to release.
func (s *System) Shutdown() {}

// NewFactory returns the extension system factory. Regular profiles share
// router; testing profiles get a system without one. Off-the-record profiles
// use their original profile's system.
func NewFactory(router *events.Router) *keyed.Factory {
	f := keyed.NewFactory(FactoryName, func(p *profile.Profile) keyed.Service {
		return NewSystem(p, router)
	}, keyed.FactoryOptions{
		CreatedWithContext: true,
		ContextToUse:       keyed.OriginalProfile,
	})
	f.SetTestingFactory(func(p *profile.Profile) keyed.Service {
		return NewSystem(p, nil)
	})
	return f
}

// For returns the extension system of p, or nil.
func For(f *keyed.Factory, p *profile.Profile) *System {
	return keyed.Get[*System](f, p)
}
