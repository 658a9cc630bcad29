// Package provider holds the set of interchangeable text-generation backends
// and tracks which one is active.
package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"innersight/internal/config"
)

// ErrUnknownProvider is returned by lookups for an id that was never registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Config identifies one backend. It is immutable once registered.
type Config struct {
	ID         string
	Endpoint   string
	Model      string
	Credential string
	Reasoning  bool // reasoning-style model with a separate reasoning_content channel
}

// String never prints the credential.
func (c Config) String() string {
	return fmt.Sprintf("%s(model=%s endpoint=%s reasoning=%t)", c.ID, c.Model, c.Endpoint, c.Reasoning)
}

// HasCredential reports whether a credential is set.
func (c Config) HasCredential() bool {
	return strings.TrimSpace(c.Credential) != ""
}

// Registry is a fixed set of providers with an atomically switchable active pointer.
// The zero value is not usable; construct with NewRegistry or FromConfig.
type Registry struct {
	providers map[string]*Config
	ids       []string
	active    atomic.Pointer[Config]
}

// NewRegistry registers the given providers and activates activeID.
func NewRegistry(providers []Config, activeID string) (*Registry, error) {
	if len(providers) == 0 {
		return nil, errors.New("provider registry requires at least one provider")
	}

	r := &Registry{providers: make(map[string]*Config, len(providers))}
	for _, p := range providers {
		p.ID = strings.ToLower(strings.TrimSpace(p.ID))
		if p.ID == "" {
			return nil, errors.New("provider id must not be empty")
		}
		if _, dup := r.providers[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		cfg := p
		r.providers[p.ID] = &cfg
		r.ids = append(r.ids, p.ID)
	}
	sort.Strings(r.ids)

	active, ok := r.providers[strings.ToLower(activeID)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, activeID)
	}
	r.active.Store(active)
	return r, nil
}

// FromConfig builds a registry from the ai section of the application config.
func FromConfig(cfg config.AI) (*Registry, error) {
	providers := make([]Config, 0, len(cfg.Providers))
	for id, p := range cfg.Providers {
		providers = append(providers, Config{
			ID:         id,
			Endpoint:   p.Endpoint,
			Model:      p.Model,
			Credential: p.APIKey,
			Reasoning:  p.Reasoning,
		})
	}
	return NewRegistry(providers, cfg.Active)
}

// Active returns a copy of the currently active provider.
func (r *Registry) Active() Config {
	return *r.active.Load()
}

// SetActive switches the active provider. The provider set is fixed at
// startup, so an unknown id is a programming error and panics.
// Callers handling user input should check Has first.
func (r *Registry) SetActive(id string) {
	p, ok := r.providers[strings.ToLower(id)]
	if !ok {
		panic(fmt.Sprintf("provider: SetActive(%q): %v", id, ErrUnknownProvider))
	}
	r.active.Store(p)
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.providers[strings.ToLower(id)]
	return ok
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Config, error) {
	p, ok := r.providers[strings.ToLower(id)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return *p, nil
}

// Resolve returns the provider for id, or the active one when id is empty.
func (r *Registry) Resolve(id string) (Config, error) {
	if id == "" {
		return r.Active(), nil
	}
	return r.Get(id)
}

// List returns all providers sorted by id.
func (r *Registry) List() []Config {
	out := make([]Config, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, *r.providers[id])
	}
	return out
}
