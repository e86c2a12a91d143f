package integration

import "sync"

// Registry is the process-wide map from integration id to instance. It is
// constructed once in main and injected into the API layer; registration
// after startup is the caller's mistake and fails loudly rather than
// silently overwriting.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Integration
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Integration),
	}
}

// Register adds an integration, failing on a duplicate id
func (r *Registry) Register(i Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[i.ID()]; exists {
		return ErrDuplicateIntegration
	}
	r.byID[i.ID()] = i
	r.order = append(r.order, i.ID())
	return nil
}

// Get returns an integration by id
func (r *Registry) Get(id string) (Integration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	return i, ok
}

// All returns every registered integration in registration order
func (r *Registry) All() []Integration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Integration, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.byID[id])
	}
	return result
}

// Enabled returns the integrations whose remote endpoint is configured
func (r *Registry) Enabled() []Integration {
	all := r.All()
	result := make([]Integration, 0, len(all))
	for _, i := range all {
		if i.Enabled() {
			result = append(result, i)
		}
	}
	return result
}

// PublicInfo projects every integration to its caller-safe metadata
func (r *Registry) PublicInfo() []PublicInfo {
	all := r.All()
	result := make([]PublicInfo, 0, len(all))
	for _, i := range all {
		result = append(result, PublicInfo{
			ID:          i.ID(),
			Name:        i.Name(),
			Description: i.Description(),
			Enabled:     i.Enabled(),
		})
	}
	return result
}
