package mocks

import (
	"context"

	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/domain/feature"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/repository"
	"github.com/rpggio/activitylog/internal/sequence"
	"github.com/stretchr/testify/mock"
)

// ActionStore is a mock for activity.Store.
type ActionStore struct {
	mock.Mock
}

func (m *ActionStore) AddObserver(obs activity.Observer) {
	m.Called(obs)
}

func (m *ActionStore) RemoveObserver(obs activity.Observer) {
	m.Called(obs)
}

func (m *ActionStore) GetFilteredActions(ctx context.Context, filter activity.Filter, reply sequence.Poster, done func([]activity.Action, error)) activity.Pending {
	args := m.Called(ctx, filter, Reply{Poster: reply}, done)
	if p, ok := args.Get(0).(activity.Pending); ok {
		return p
	}
	return &Pending{}
}

func (m *ActionStore) RemoveActions(ctx context.Context, ids []int64) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *ActionStore) RemoveURLs(ctx context.Context, urls []activity.URL) error {
	args := m.Called(ctx, urls)
	return args.Error(0)
}

func (m *ActionStore) DeleteDatabase(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Reply carries the reply sequence through recorded call arguments. testify
// formats every argument while matching, and the live runner must not be
// read from the test goroutine.
type Reply struct {
	sequence.Poster
}

func (Reply) String() string {
	return "reply"
}

// Pending is a recording activity.Pending.
type Pending struct {
	Canceled bool
}

func (p *Pending) Cancel() {
	p.Canceled = true
}

// EventRouter is a mock for activity.EventRouter.
type EventRouter struct {
	mock.Mock
}

func (m *EventRouter) RegisterObserver(obs events.Observer, eventName string) {
	m.Called(obs, eventName)
}

func (m *EventRouter) UnregisterObserver(obs events.Observer) {
	m.Called(obs)
}

func (m *EventRouter) BroadcastEvent(evt *events.Event) {
	m.Called(evt)
}

// FeatureProvider is a mock for activity.FeatureProvider.
type FeatureProvider struct {
	mock.Mock
}

func (m *FeatureProvider) GetFeature(name string) *feature.Feature {
	args := m.Called(name)
	if f, ok := args.Get(0).(*feature.Feature); ok {
		return f
	}
	return nil
}

// APIKeyRepository is a mock for repository.APIKeyRepository.
type APIKeyRepository struct {
	mock.Mock
}

func (m *APIKeyRepository) Create(ctx context.Context, key *repository.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *APIKeyRepository) Resolve(ctx context.Context, keyHash string) (repository.Caller, error) {
	args := m.Called(ctx, keyHash)
	return args.Get(0).(repository.Caller), args.Error(1)
}

func (m *APIKeyRepository) ListByProfile(ctx context.Context, profileID string) ([]repository.APIKey, error) {
	args := m.Called(ctx, profileID)
	if list, ok := args.Get(0).([]repository.APIKey); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *APIKeyRepository) Delete(ctx context.Context, keyHash string) error {
	args := m.Called(ctx, keyHash)
	return args.Error(0)
}
