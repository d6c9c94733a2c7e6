package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// SourceFactory creates a new, uninitialized Source.
type SourceFactory func() Source

// Registry manages registered issue sources.
// Sources register themselves at init time, and the registry
// provides access to them by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]SourceFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]SourceFactory)}
}

// globalRegistry is the default registry used by Register and Get.
var globalRegistry = NewRegistry()

// Register adds a source factory to the global registry.
// This is typically called from source package init() functions.
func Register(name string, factory SourceFactory) {
	globalRegistry.Register(name, factory)
}

// Get retrieves a source factory from the global registry.
// Returns nil if no source with that name is registered.
func Get(name string) SourceFactory {
	return globalRegistry.Get(name)
}

// List returns the names of all registered sources.
func List() []string {
	return globalRegistry.List()
}

// NewSource creates a new instance of the named source.
// Returns an error if no source with that name is registered.
func NewSource(name string) (Source, error) {
	return globalRegistry.NewSource(name)
}

// IsRegistered reports whether the global registry knows name.
func IsRegistered(name string) bool {
	return globalRegistry.IsRegistered(name)
}

// Register adds a source factory to this registry.
func (r *Registry) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// Get retrieves a source factory from this registry.
func (r *Registry) Get(name string) SourceFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// List returns the names of all registered sources, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSource creates a new instance of the named source.
func (r *Registry) NewSource(name string) (Source, error) {
	factory := r.Get(name)
	if factory == nil {
		return nil, fmt.Errorf("unknown source %q (available: %v)", name, r.List())
	}
	return factory(), nil
}

// IsRegistered checks if a source with the given name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[name]
	return ok
}
