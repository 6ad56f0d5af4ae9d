package feature

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// ActivityLogPrivate names the permission feature guarding the activity log
// API.
const ActivityLogPrivate = "activityLogPrivate"

// Feature is a permission feature with an extension id whitelist.
type Feature struct {
	Name      string   `yaml:"name"`
	Whitelist []string `yaml:"whitelist"`

	ids map[string]struct{}
}

// IsIDInWhitelist reports whether extensionID may use the feature. A nil
// feature whitelists nothing.
func (f *Feature) IsIDInWhitelist(extensionID string) bool {
	if f == nil || extensionID == "" {
		return false
	}
	_, ok := f.ids[extensionID]
	return ok
}

func (f *Feature) index() {
	f.ids = make(map[string]struct{}, len(f.Whitelist))
	for _, id := range f.Whitelist {
		if id != "" {
			f.ids[id] = struct{}{}
		}
	}
}

type file struct {
	Features []Feature `yaml:"features"`
}

// Provider serves the current feature set. Reads never block reloads.
type Provider struct {
	path     string
	logger   *slog.Logger
	features atomic.Pointer[map[string]*Feature]
	watcher  *watcher
}

// NewProvider creates a provider holding features. The activityLogPrivate
// feature always exists, with an empty whitelist unless given.
func NewProvider(features ...Feature) *Provider {
	p := &Provider{logger: slog.Default()}
	p.Replace(features)
	return p
}

// Load reads features from a YAML file.
func Load(path string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{path: path, logger: logger}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// GetFeature returns the named feature, or nil.
func (p *Provider) GetFeature(name string) *Feature {
	current := p.features.Load()
	if current == nil {
		return nil
	}
	return (*current)[name]
}

// Replace swaps in a new feature set.
func (p *Provider) Replace(features []Feature) {
	next := make(map[string]*Feature, len(features)+1)
	for i := range features {
		f := features[i]
		f.Whitelist = append([]string(nil), f.Whitelist...)
		f.index()
		next[f.Name] = &f
	}
	if _, ok := next[ActivityLogPrivate]; !ok {
		f := &Feature{Name: ActivityLogPrivate}
		f.index()
		next[ActivityLogPrivate] = f
	}
	p.features.Store(&next)
}

// Reload re-reads the provider's file. The previous set stays in place when
// the file cannot be read or parsed.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read features file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse features file: %w", err)
	}
	for _, feat := range f.Features {
		if feat.Name == "" {
			return fmt.Errorf("parse features file: feature without name")
		}
	}
	p.Replace(f.Features)
	p.logger.Info("features loaded", "path", p.path, "count", len(f.Features))
	return nil
}
