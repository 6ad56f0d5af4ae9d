package repository

import (
	"context"
	"time"
)

// Caller identifies an authenticated client: the profile it acts on and the
// extension it acts as.
type Caller struct {
	ProfileID   string
	ExtensionID string
}

// APIKey is a stored credential. Only the hash of the key is persisted.
type APIKey struct {
	KeyHash     string
	ProfileID   string
	ExtensionID string
	Description string
	CreatedAt   time.Time
	LastUsed    *time.Time
}

// APIKeyRepository manages API key persistence
type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	// Resolve returns the caller for a key hash and stamps its last use.
	Resolve(ctx context.Context, keyHash string) (Caller, error)
	ListByProfile(ctx context.Context, profileID string) ([]APIKey, error)
	Delete(ctx context.Context, keyHash string) error
}
