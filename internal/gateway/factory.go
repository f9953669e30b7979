// Package gateway sends extraction requests to interchangeable model providers
// with retry, rate limiting, caching and fallback.
package gateway

import (
	"fmt"
	"sort"
	"sync"

	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/port"
)

// ProviderFactory creates a backend from a provider config. Factories must
// reject a missing credential with an AuthenticationError.
type ProviderFactory func(cfg *config.ProviderConfig) (port.NamedBackend, error)

var (
	mu sync.RWMutex
	// registry of provider factories, populated by init() in each provider package.
	providers = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// Providers lists registered provider names.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewBackend creates a bare backend from a provider config using the registered factory.
func NewBackend(cfg *config.ProviderConfig) (port.NamedBackend, error) {
	mu.RLock()
	factory, ok := providers[cfg.Provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, cfg.Provider)
	}
	return factory(cfg)
}
