package keyed

import (
	"sync"

	"github.com/rpggio/activitylog/internal/profile"
)

// Service is an object owned by a profile for the profile's lifetime.
type Service interface {
	Shutdown()
}

// BuildFunc constructs the service instance for a profile.
type BuildFunc func(p *profile.Profile) Service

// FactoryOptions configure a Factory.
type FactoryOptions struct {
	// CreatedWithContext builds the service eagerly when the profile is
	// created instead of on first lookup.
	CreatedWithContext bool
	// NullWhileTesting yields a nil service for testing profiles unless a
	// testing factory is installed.
	NullWhileTesting bool
	// ContextToUse maps a profile to the one whose service it shares.
	// Returning nil means the profile gets no service.
	ContextToUse func(p *profile.Profile) *profile.Profile
}

// Factory builds at most one service per profile.
type Factory struct {
	name    string
	build   BuildFunc
	opts    FactoryOptions
	deps    []*Factory
	testing BuildFunc

	mu       sync.Mutex
	services map[string]Service
}

// NewFactory creates a factory. Register it with a Manager so dependency
// ordering applies.
func NewFactory(name string, build BuildFunc, opts FactoryOptions) *Factory {
	return &Factory{
		name:     name,
		build:    build,
		opts:     opts,
		services: make(map[string]Service),
	}
}

func (f *Factory) Name() string {
	return f.name
}

// DependsOn declares factories whose services must exist before this one's.
func (f *Factory) DependsOn(deps ...*Factory) {
	f.deps = append(f.deps, deps...)
}

// Dependencies returns the declared dependencies.
func (f *Factory) Dependencies() []*Factory {
	return append([]*Factory(nil), f.deps...)
}

func (f *Factory) ServiceIsCreatedWithContext() bool {
	return f.opts.CreatedWithContext
}

func (f *Factory) ServiceIsNullWhileTesting() bool {
	return f.opts.NullWhileTesting
}

// SetTestingFactory overrides how the service is built for testing profiles.
// A nil build function restores the default.
func (f *Factory) SetTestingFactory(build BuildFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.testing = build
}

// ServiceFor returns the service for p, building it when create is set.
// The result is nil for testing profiles of a null-while-testing factory.
func (f *Factory) ServiceFor(p *profile.Profile, create bool) Service {
	target := f.contextFor(p)
	if target == nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if svc, ok := f.services[target.ID()]; ok {
		return svc
	}
	if !create {
		return nil
	}

	var svc Service
	switch {
	case target.IsTesting() && f.testing != nil:
		svc = f.testing(target)
	case target.IsTesting() && f.opts.NullWhileTesting:
		svc = nil
	default:
		svc = f.build(target)
	}
	f.services[target.ID()] = svc
	return svc
}

func (f *Factory) contextFor(p *profile.Profile) *profile.Profile {
	if p == nil {
		return nil
	}
	if f.opts.ContextToUse != nil {
		return f.opts.ContextToUse(p)
	}
	return p
}

// shutdownFor shuts down the service keyed directly by p, if any.
func (f *Factory) shutdownFor(p *profile.Profile) {
	f.mu.Lock()
	svc, ok := f.services[p.ID()]
	f.mu.Unlock()
	if ok && svc != nil {
		svc.Shutdown()
	}
}

func (f *Factory) forget(p *profile.Profile) {
	f.mu.Lock()
	delete(f.services, p.ID())
	f.mu.Unlock()
}

// Get returns f's service for p as T, or the zero T when there is none.
func Get[T any](f *Factory, p *profile.Profile) T {
	var zero T
	svc, ok := f.ServiceFor(p, true).(T)
	if !ok {
		return zero
	}
	return svc
}

// OriginalProfile redirects off-the-record profiles to their original.
func OriginalProfile(p *profile.Profile) *profile.Profile {
	return p.Original()
}
