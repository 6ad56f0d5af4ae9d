package activity

import (
	"context"
	"fmt"

	"github.com/rpggio/activitylog/internal/keyed"
	"github.com/rpggio/activitylog/internal/profile"
)

// ProfileLookup finds live profiles by id.
type ProfileLookup interface {
	Get(id string) (*profile.Profile, bool)
}

// Resolver maps a caller's profile id onto the profile's service and store.
type Resolver struct {
	profiles ProfileLookup
	services *keyed.Factory
	stores   *keyed.Factory
}

// NewResolver creates a resolver over the activity log and store factories.
func NewResolver(profiles ProfileLookup, services, stores *keyed.Factory) *Resolver {
	return &Resolver{profiles: profiles, services: services, stores: stores}
}

// ServiceFor returns the service behind profileID. A live profile without a
// service yields ErrNoService.
func (r *Resolver) ServiceFor(profileID string) (*Service, error) {
	p, ok := r.profiles.Get(profileID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profileID)
	}
	svc := ServiceFor(r.services, p)
	if svc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoService, profileID)
	}
	return svc, nil
}

// RecordAction appends action to the store of profileID. Off-the-record
// profiles write to their original profile's store.
func (r *Resolver) RecordAction(ctx context.Context, profileID string, action *Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	p, ok := r.profiles.Get(profileID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProfile, profileID)
	}
	rec := keyed.Get[Recorder](r.stores, p)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNoService, profileID)
	}
	return rec.Append(ctx, action)
}
