package source

import (
	"context"
	"fmt"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

// Provider captures a single upstream implementation (IADB, mirrors, etc.).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req ports.FetchRequest) (domain.RawPayload, error)
}

// Registry keeps a mapping from provider names to their implementations.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds or replaces a provider implementation.
func (r *Registry) Register(provider Provider) {
	if r.providers == nil {
		r.providers = map[string]Provider{}
	}
	r.providers[provider.Name()] = provider
}

// Resolve returns a provider by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Provider, error) {
	if provider, ok := r.providers[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("provider %s is not registered", name)
}
