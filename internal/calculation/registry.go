package calculation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to the factories that build them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// defaultRegistry is populated by provider packages at init time.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry that built-in providers
// register into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a provider factory to the default registry.
// Panics if a provider with the same name is already registered.
func Register(name string, factory ProviderFactory) {
	defaultRegistry.MustRegister(name, factory)
}

// Register adds a provider factory under name.
// Returns an error if the name is empty, the factory is nil, or the name is
// already taken.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if factory == nil {
		return fmt.Errorf("provider %q: factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, factory ProviderFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err.Error())
	}
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (ProviderFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	return f, ok
}

// Names returns all registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Clear removes all registered providers.
// Primarily useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]ProviderFactory)
}
