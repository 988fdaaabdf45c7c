package llm

import (
	"fmt"
	"sync"

	"threadsim/internal/domain"
	domainllm "threadsim/internal/domain/services/llm"
)

// ProviderRegistry routes model requests to the provider that serves them.
type ProviderRegistry struct {
	providers []domainllm.Provider
	byName    map[string]domainllm.Provider
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		byName: make(map[string]domainllm.Provider),
	}
}

// Register adds a provider. Registration order decides model routing:
// the first provider claiming a model wins.
func (r *ProviderRegistry) Register(p domainllm.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.byName[p.Name()] = p
}

// ForModel returns the first registered provider that supports the model.
func (r *ProviderRegistry) ForModel(model string) (domainllm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if p.SupportsModel(model) {
			return p, nil
		}
	}
	return nil, &domain.UnavailableError{Message: fmt.Sprintf("no provider supports model %q", model)}
}

// ByName returns a provider by its registered name.
func (r *ProviderRegistry) ByName(name string) (domainllm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, &domain.UnavailableError{Message: fmt.Sprintf("provider %q is not configured", name)}
}

// Images returns the first registered provider that can generate images.
func (r *ProviderRegistry) Images() (domainllm.ImageGenerator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if ig, ok := p.(domainllm.ImageGenerator); ok {
			return ig, nil
		}
	}
	return nil, &domain.UnavailableError{Message: "no image-capable provider is configured"}
}
