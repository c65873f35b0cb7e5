package providers

import (
	"errors"
	"sort"
	"sync"
)

// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
var ErrProviderAlreadyRegistered = errors.New("provider already registered")

// Registry holds adapters in registration order
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	byID     map[string]Adapter
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Adapter),
	}
}

// Register adds an adapter. Identifiers must be unique.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}

	id := adapter.Identifier()
	if id == "" {
		return errors.New("adapter identifier cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.adapters = append(r.adapters, adapter)
	r.byID[id] = adapter
	return nil
}

// Ordered returns all adapters sorted ascending by priority. Equal
// priorities keep registration order.
func (r *Registry) Ordered() []Adapter {
	r.mu.RLock()
	ordered := make([]Adapter, len(r.adapters))
	copy(ordered, r.adapters)
	r.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})
	return ordered
}

// Configured returns the adapters with credentials, in priority order
func (r *Registry) Configured() []Adapter {
	ordered := r.Ordered()
	configured := make([]Adapter, 0, len(ordered))
	for _, adapter := range ordered {
		if adapter.IsConfigured() {
			configured = append(configured, adapter)
		}
	}
	return configured
}

// Identifiers returns all registered identifiers in registration order
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for _, adapter := range r.adapters {
		ids = append(ids, adapter.Identifier())
	}
	return ids
}
