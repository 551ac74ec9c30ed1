package chains

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry holds one adapter per configured network.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Network()] = a
}

func (r *Registry) Get(network string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[network]
	if !ok {
		return nil, errors.Wrap(ErrUnknownNetwork, network)
	}
	return a, nil
}

func (r *Registry) Networks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
