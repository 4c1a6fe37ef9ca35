// Package source holds the per-site adapter registry and extraction helpers
// shared by the site parsers.
package source

import (
	"fmt"
	"sort"

	"github.com/kvartyra/estate-crawler/internal/listing"
)

// Registry dispatches source names to their adapter implementations.
type Registry struct {
	adapters map[string]listing.Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...listing.Adapter) *Registry {
	r := &Registry{adapters: make(map[string]listing.Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (listing.Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return a, nil
}

// Names lists registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
