// Package registry holds the ordered catalog of module descriptors.
//
// Modules self-register into Default from init functions; drivers look them up
// by id or classify a user path against every registered filter.
package registry

import (
	"iter"
	"sort"
	"sync"

	"github.com/mattjoyce/executor/internal/module"
)

// Registry maps module ids to descriptors and remembers insertion order.
// It is write-once per id and read-many.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]*module.Descriptor
	order   []string
}

// New creates an empty module registry.
func New() *Registry {
	return &Registry{
		modules: make(map[string]*module.Descriptor),
	}
}

// Default is the process-wide registry populated at init time.
var Default = New()

// Register adds d. It fails with *module.DuplicateIDError if the id is taken.
func (r *Registry) Register(d *module.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[d.ID()]; exists {
		return &module.DuplicateIDError{ID: d.ID()}
	}
	r.modules[d.ID()] = d
	r.order = append(r.order, d.ID())
	return nil
}

// MustRegister is Register for init-time declarations; it panics on error.
func (r *Registry) MustRegister(d *module.Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor for id or *module.NotFoundError.
func (r *Registry) Lookup(id string) (*module.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.modules[id]
	if !ok {
		return nil, &module.NotFoundError{ID: id}
	}
	return d, nil
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All yields descriptors in insertion order. The sequence is a snapshot and can be ranged over repeatedly.
func (r *Registry) All() iter.Seq[*module.Descriptor] {
	return func(yield func(*module.Descriptor) bool) {
		for _, d := range r.snapshot() {
			if !yield(d) {
				return
			}
		}
	}
}

// List returns descriptors in insertion order.
func (r *Registry) List() []*module.Descriptor {
	return r.snapshot()
}

func (r *Registry) snapshot() []*module.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*module.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// Menu returns the descriptors that carry an option key, ordered by key.
// Ties keep insertion order.
func (r *Registry) Menu() []*module.Descriptor {
	var out []*module.Descriptor
	for d := range r.All() {
		if _, ok := d.Option(); ok {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Option()
		b, _ := out[j].Option()
		return a < b
	})
	return out
}

// Classify returns the enabled modules whose filter matches path, in insertion order.
// Modules without a filter are never returned.
func (r *Registry) Classify(path string) []*module.Descriptor {
	var out []*module.Descriptor
	for d := range r.All() {
		if d.Matches(path) {
			out = append(out, d)
		}
	}
	return out
}
