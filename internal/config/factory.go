package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
)

// FactoryInput is what a target factory sees when it runs.
type FactoryInput struct {
	// Args are the factory arguments from the target_factories entry.
	Args cfgtree.Value
	// Tree is the configuration resolved so far, including imports.
	Tree *Tree
	// FS is the filesystem the loader reads from.
	FS afero.Fs
}

// Factory synthesizes targets. It returns a mapping of target name to target spec.
type Factory func(ctx context.Context, in FactoryInput) (*cfgtree.Map, error)

// FactoryRegistry maps factory names to implementations.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry creates an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

// DefaultFactories returns a registry holding the built-in factories.
func DefaultFactories() *FactoryRegistry {
	r := NewFactoryRegistry()
	_ = r.Register("glob", GlobFactory)
	return r
}

// Register adds a factory. Names must be unique.
func (r *FactoryRegistry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("factory name must not be empty")
	}
	if f == nil {
		return fmt.Errorf("cannot register nil factory %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("factory %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Get looks up a factory by name.
func (r *FactoryRegistry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists registered factories, sorted.
func (r *FactoryRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
