package graphrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wandermind/stategraph/internal/app/usecases"
	"github.com/wandermind/stategraph/internal/core/graph"
)

// InMemoryGraphRepository keeps compiled graphs by name
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for graph lookup
// - Thread-safe
//
// Only compiled graphs can be stored, so everything in the repository has
// already passed validation.
type InMemoryGraphRepository struct {
	mu     sync.RWMutex
	graphs map[string]*graph.Compiled
}

var _ usecases.GraphRepository = (*InMemoryGraphRepository)(nil)

func NewInMemoryGraphRepository() *InMemoryGraphRepository {
	return &InMemoryGraphRepository{
		graphs: make(map[string]*graph.Compiled),
	}
}

// Save registers g under its name; names are unique
func (r *InMemoryGraphRepository) Save(_ context.Context, g *graph.Compiled) error {
	if g == nil {
		return usecases.ErrNilGraph
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[g.Name()]; ok {
		return fmt.Errorf("%w: %q", usecases.ErrGraphExists, g.Name())
	}
	r.graphs[g.Name()] = g
	return nil
}

func (r *InMemoryGraphRepository) Get(_ context.Context, name string) (*graph.Compiled, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", usecases.ErrGraphNotFound, name)
	}
	return g, nil
}

// List returns graphs sorted by name
func (r *InMemoryGraphRepository) List(_ context.Context) ([]*graph.Compiled, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*graph.Compiled, 0, len(r.graphs))
	for _, g := range r.graphs {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r *InMemoryGraphRepository) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[name]; !ok {
		return fmt.Errorf("%w: %q", usecases.ErrGraphNotFound, name)
	}
	delete(r.graphs, name)
	return nil
}
