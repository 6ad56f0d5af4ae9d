package keyed

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rpggio/activitylog/internal/profile"
)

// Manager owns the registered factories and builds or tears down their
// services per profile in dependency order.
type Manager struct {
	mu        sync.Mutex
	factories []*Factory
	ordered   []*Factory
	logger    *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds factories and, transitively, their dependencies. It panics
// when the declared dependencies contain a cycle.
func (m *Manager) Register(factories ...*Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range factories {
		m.addLocked(f)
	}
	ordered, err := topoSort(m.factories)
	if err != nil {
		panic(err)
	}
	m.ordered = ordered
}

func (m *Manager) addLocked(f *Factory) {
	for _, existing := range m.factories {
		if existing == f {
			return
		}
	}
	m.factories = append(m.factories, f)
	for _, dep := range f.deps {
		m.addLocked(dep)
	}
}

// Order returns factory names in construction order.
func (m *Manager) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ordered))
	for _, f := range m.ordered {
		names = append(names, f.name)
	}
	return names
}

// CreateServices builds every created-with-context service for p.
func (m *Manager) CreateServices(p *profile.Profile) {
	for _, f := range m.snapshot() {
		if !f.ServiceIsCreatedWithContext() {
			continue
		}
		f.ServiceFor(p, true)
	}
	m.logger.Debug("profile services created", "profile_id", p.ID())
}

// DestroyServices shuts down p's services in reverse construction order and
// then forgets them.
func (m *Manager) DestroyServices(p *profile.Profile) {
	ordered := m.snapshot()
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i].shutdownFor(p)
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i].forget(p)
	}
	m.logger.Debug("profile services destroyed", "profile_id", p.ID())
}

func (m *Manager) snapshot() []*Factory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Factory(nil), m.ordered...)
}

func topoSort(factories []*Factory) ([]*Factory, error) {
	const (
		unvisited = iota
		visiting
		visited
	)
	marks := make(map[*Factory]int, len(factories))
	ordered := make([]*Factory, 0, len(factories))

	var visit func(f *Factory, path []string) error
	visit = func(f *Factory, path []string) error {
		switch marks[f] {
		case visited:
			return nil
		case visiting:
			return fmt.Errorf("keyed: dependency cycle: %v -> %s", path, f.name)
		}
		marks[f] = visiting
		for _, dep := range f.deps {
			if err := visit(dep, append(path, f.name)); err != nil {
				return err
			}
		}
		marks[f] = visited
		ordered = append(ordered, f)
		return nil
	}

	for _, f := range factories {
		if err := visit(f, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
