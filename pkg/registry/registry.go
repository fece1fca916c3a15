// Package registry maps node type names to factories, so pipelines can be
// assembled from declarative definitions.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
)

// Factory builds a node template from a parameter record.
type Factory func(params domain.Params) (pflow.Node, error)

// Registry manages the available node factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. An existing registration with the
// same name is overwritten.
func (r *Registry) Register(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = fn
}

// Build looks up name and invokes its factory with params.
func (r *Registry) Build(name string, params domain.Params) (pflow.Node, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("node type not registered: %s", name)
	}

	return fn(params)
}

// Names lists the registered node types in sorted order.
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
