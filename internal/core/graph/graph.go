// Package graph provides the graph definition builder and its compiled,
// immutable form. It has no dependencies outside the module.
package graph

import (
	"github.com/wandermind/stategraph/internal/core/state"
)

// Graph is the mutable definition a caller builds before Compile
// PRINCIPLES:
// - KISS: Simple struct, no complex hierarchies
// - SRP: Only responsible for graph structure, not execution
// - YAGNI: No unused fields or methods
type Graph struct {
	name       string
	schema     *state.Schema
	nodes      map[string]*Node
	order      []string
	edges      []Edge
	entryPoint string
}

// New creates an empty graph whose nodes share schema
func New(name string, schema *state.Schema) *Graph {
	return &Graph{
		name:   name,
		schema: schema,
		nodes:  make(map[string]*Node),
	}
}

// Name returns the graph name
func (g *Graph) Name() string { return g.name }

// AddNode registers a transformation under id
// PRINCIPLES:
// - KISS: Direct and simple implementation
// - SRP: Only adds node, doesn't validate graph
func (g *Graph) AddNode(id string, fn NodeFunc, opts ...NodeOption) error {
	node := &Node{ID: id, Fn: fn}
	for _, opt := range opts {
		opt(node)
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if _, exists := g.nodes[id]; exists {
		return &DuplicateNodeError{NodeID: id}
	}
	g.nodes[id] = node
	g.order = append(g.order, id)
	return nil
}

// AddEdge wires a static transition. A target of END finishes the run.
// Endpoint existence is checked by Compile.
func (g *Graph) AddEdge(from, to string) error {
	edge := Edge{Source: from, Kind: EdgeStatic, Target: to}
	if to == END {
		edge = Edge{Source: from, Kind: EdgeTerminal}
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	// Prevent duplicate edges (same source, kind and target)
	for _, e := range g.edges {
		if e.Source == edge.Source && e.Kind == edge.Kind && e.Target == edge.Target {
			return ErrDuplicateEdge
		}
	}
	g.edges = append(g.edges, edge)
	return nil
}

// AddConditionalEdge wires a transition chosen at run time by router.
// targets is the closed set the router may return; it may include END.
func (g *Graph) AddConditionalEdge(from string, router RouterFunc, targets ...string) error {
	edge := Edge{Source: from, Kind: EdgeConditional, Router: router, Targets: dedupe(targets)}
	if err := edge.Validate(); err != nil {
		return err
	}
	g.edges = append(g.edges, edge)
	return nil
}

// SetEntryPoint designates the first node of every run
func (g *Graph) SetEntryPoint(id string) error {
	if _, exists := g.nodes[id]; !exists {
		return &UnknownNodeError{NodeID: id, Ref: "entry point"}
	}
	g.entryPoint = id
	return nil
}

// SetFinishPoint wires id to END
func (g *Graph) SetFinishPoint(id string) error {
	return g.AddEdge(id, END)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
