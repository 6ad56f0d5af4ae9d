package activity

import (
	"context"

	"github.com/rpggio/activitylog/internal/domain/feature"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/sequence"
)

// Observer is notified synchronously each time the store appends an action.
type Observer interface {
	OnActionAppended(action Action)
}

// Pending is an in-flight asynchronous query.
type Pending interface {
	// Cancel abandons the query. Its continuation will not run.
	Cancel()
}

// Store is the durable action log of one profile.
type Store interface {
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	// GetFilteredActions runs the query off the caller's sequence and posts
	// done back to reply with the matching actions in store order.
	GetFilteredActions(ctx context.Context, filter Filter, reply sequence.Poster, done func([]Action, error)) Pending
	RemoveActions(ctx context.Context, ids []int64) error
	// RemoveURLs deletes actions whose page or argument URL equals one of
	// urls. Invalid URLs match nothing.
	RemoveURLs(ctx context.Context, urls []URL) error
	DeleteDatabase(ctx context.Context) error
}

// Recorder appends actions produced outside the service.
type Recorder interface {
	Append(ctx context.Context, action *Action) error
}

// EventRouter delivers named events to listeners.
type EventRouter interface {
	RegisterObserver(obs events.Observer, eventName string)
	UnregisterObserver(obs events.Observer)
	BroadcastEvent(evt *events.Event)
}

// FeatureProvider resolves permission features by name.
type FeatureProvider interface {
	GetFeature(name string) *feature.Feature
}
