package activity

import (
	"log/slog"

	"github.com/rpggio/activitylog/internal/extension"
	"github.com/rpggio/activitylog/internal/keyed"
	"github.com/rpggio/activitylog/internal/profile"
)

// ServiceName identifies the activity log service in the keyed service graph.
const ServiceName = "ActivityLogAPI"

// NewFactory returns the factory for per-profile activity log services. The
// service is built with its profile, is absent for testing profiles, and is
// shared by a profile and its off-the-record child. It depends on the
// extension system and the action store factories.
func NewFactory(extensions, stores *keyed.Factory, features FeatureProvider, logger *slog.Logger) *keyed.Factory {
	f := keyed.NewFactory(ServiceName, func(p *profile.Profile) keyed.Service {
		deps := ServiceDeps{
			Profile:  p,
			Store:    keyed.Get[Store](stores, p),
			Features: features,
			Logger:   logger,
		}
		// Leave Router as a nil interface rather than a typed nil pointer.
		if sys := extension.For(extensions, p); sys != nil && sys.EventRouter() != nil {
			deps.Router = sys.EventRouter()
		}
		return NewService(deps)
	}, keyed.FactoryOptions{
		CreatedWithContext: true,
		NullWhileTesting:   true,
		ContextToUse:       keyed.OriginalProfile,
	})
	f.DependsOn(extensions, stores)
	return f
}

// ServiceFor returns the activity log service of p, or nil.
func ServiceFor(f *keyed.Factory, p *profile.Profile) *Service {
	return keyed.Get[*Service](f, p)
}
