package providers

import (
	"fmt"
	"sync"
)

// Registry manages the registration and retrieval of generation providers.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates a registry with the specified providers registered.
// With no arguments, all known providers are registered.
func NewRegistry(names ...string) *Registry {
	registry := &Registry{
		constructors: make(map[string]Constructor),
	}

	known := knownProviders()
	if len(names) == 0 {
		for name, ctor := range known {
			registry.constructors[name] = ctor
		}
	} else {
		for _, name := range names {
			if ctor, ok := known[CanonicalName(name)]; ok {
				registry.constructors[CanonicalName(name)] = ctor
			}
		}
	}

	return registry
}

func knownProviders() map[string]Constructor {
	return map[string]Constructor{
		"anthropic": func(apiKey string) Provider {
			return NewAnthropicProvider(apiKey)
		},
		"openai": func(apiKey string) Provider {
			return NewOpenAIProvider(apiKey)
		},
	}
}

// CanonicalName resolves historical aliases; the dashboard's original data
// refers to Anthropic as "claude".
func CanonicalName(name string) string {
	if name == "claude" {
		return "anthropic"
	}
	return name
}

// Register adds a provider constructor under the given name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Known reports whether a provider name (or alias) is registered.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[CanonicalName(name)]
	return ok
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}

// Get builds a provider instance by name.
func (r *Registry) Get(name, apiKey string) (Provider, error) {
	r.mu.RLock()
	ctor, exists := r.constructors[CanonicalName(name)]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	return ctor(apiKey), nil
}
