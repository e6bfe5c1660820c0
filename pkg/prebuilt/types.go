package prebuilt

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/wandermind/stategraph/pkg/stategraph"
)

var (
	ErrUnknown    = errors.New("unknown prebuilt")
	ErrDuplicate  = errors.New("prebuilt already registered")
	ErrConfigType = errors.New("unexpected prebuilt config type")
)

// Builder constructs a compiled graph from a configuration value.
// Build must not register the graph anywhere; callers do that.
type Builder interface {
	Name() string
	Build(ctx context.Context, cfg any) (*stategraph.Compiled, error)
}

// Typed adapts a build function over a concrete config type. Build accepts C
// or a non-nil *C and fails with ErrConfigType for anything else.
func Typed[C any](name string, build func(ctx context.Context, cfg C) (*stategraph.Compiled, error)) Builder {
	return typed[C]{name: name, build: build}
}

type typed[C any] struct {
	name  string
	build func(ctx context.Context, cfg C) (*stategraph.Compiled, error)
}

func (t typed[C]) Name() string { return t.name }

func (t typed[C]) Build(ctx context.Context, cfg any) (*stategraph.Compiled, error) {
	switch c := cfg.(type) {
	case C:
		return t.build(ctx, c)
	case *C:
		if c != nil {
			return t.build(ctx, *c)
		}
	}
	var want C
	return nil, fmt.Errorf("%w for %s: got %T, want %T", ErrConfigType, t.name, cfg, want)
}

// Registry holds builders by name. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds b; a name can be registered once
func (r *Registry) Register(b Builder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[b.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, b.Name())
	}
	r.builders[b.Name()] = b
	return nil
}

// MustRegister is Register for static setup
func (r *Registry) MustRegister(b Builder) {
	if err := r.Register(b); err != nil {
		panic(err)
	}
}

// Get looks up a builder
func (r *Registry) Get(name string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[name]
	return b, ok
}

// Names lists registered builders in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.builders))
}

// Build looks up name and builds it with cfg
func (r *Registry) Build(ctx context.Context, name string, cfg any) (*stategraph.Compiled, error) {
	b, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return b.Build(ctx, cfg)
}
