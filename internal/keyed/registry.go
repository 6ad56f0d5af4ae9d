package keyed

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rpggio/activitylog/internal/profile"
)

var (
	// ErrProfileExists is returned when creating a profile whose id is taken.
	ErrProfileExists = errors.New("profile already exists")

	// ErrProfileNotFound is returned for unknown profile ids.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfileID is returned for ids reserved for off-the-record
	// profiles.
	ErrInvalidProfileID = errors.New("invalid profile id")
)

// Registry tracks live profiles and drives their service lifecycle.
type Registry struct {
	manager *Manager
	logger  *slog.Logger

	mu       sync.RWMutex
	profiles map[string]*profile.Profile
}

// NewRegistry creates a registry backed by manager.
func NewRegistry(manager *Manager, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		manager:  manager,
		logger:   logger,
		profiles: make(map[string]*profile.Profile),
	}
}

// Create registers a new profile and builds its eager services. An empty id
// is replaced by a generated one.
func (r *Registry) Create(id string, opts profile.Options) (*profile.Profile, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if strings.HasSuffix(id, profile.OffTheRecordSuffix) {
		return nil, fmt.Errorf("%w: %s is reserved for off-the-record profiles", ErrInvalidProfileID, id)
	}

	r.mu.Lock()
	if _, ok := r.profiles[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, id)
	}
	p := profile.New(id, opts, r.logger)
	r.profiles[id] = p
	r.mu.Unlock()

	r.manager.CreateServices(p)
	r.logger.Info("profile created", "profile_id", id, "testing", opts.Testing)
	return p, nil
}

// CreateOffTheRecord creates the off-the-record child of an existing profile.
func (r *Registry) CreateOffTheRecord(originalID string) (*profile.Profile, error) {
	original, ok := r.Get(originalID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, originalID)
	}
	if original.IsOffTheRecord() {
		return nil, fmt.Errorf("profile %s is already off the record", originalID)
	}

	p := profile.NewOffTheRecord(original, r.logger)
	r.mu.Lock()
	if _, exists := r.profiles[p.ID()]; exists {
		r.mu.Unlock()
		p.Close()
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, p.ID())
	}
	r.profiles[p.ID()] = p
	r.mu.Unlock()

	r.manager.CreateServices(p)
	r.logger.Info("off-the-record profile created", "profile_id", p.ID(), "original_id", originalID)
	return p, nil
}

// Get returns the live profile with the given id.
func (r *Registry) Get(id string) (*profile.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	return p, ok
}

// IDs returns the ids of all live profiles.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}

// Destroy shuts down a profile's services and stops its sequence. The
// profile's off-the-record child, if any, goes first.
func (r *Registry) Destroy(id string) error {
	r.mu.Lock()
	p, ok := r.profiles[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	var child *profile.Profile
	if c, ok := r.profiles[id+profile.OffTheRecordSuffix]; ok && c.IsOffTheRecord() && c.Original() == p {
		child = c
		delete(r.profiles, c.ID())
	}
	delete(r.profiles, id)
	r.mu.Unlock()

	if child != nil {
		r.teardown(child)
	}
	r.teardown(p)
	return nil
}

// Close destroys every live profile.
func (r *Registry) Close() {
	for _, id := range r.IDs() {
		if _, ok := r.Get(id); !ok {
			continue
		}
		_ = r.Destroy(id)
	}
}

func (r *Registry) teardown(p *profile.Profile) {
	r.manager.DestroyServices(p)
	p.Close()
	r.logger.Info("profile destroyed", "profile_id", p.ID())
}
