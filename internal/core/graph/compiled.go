package graph

import (
	"github.com/wandermind/stategraph/internal/core/state"
)

// Compiled is an immutable, executable graph produced by Graph.Compile.
//
// Nothing reachable from a Compiled can be mutated by callers, so one value may
// serve any number of concurrent runs.
//
// Extension point: the edge table already separates each node's destinations,
// so an engine could dispatch several static successors in parallel and join
// them before the next shared node. The compiler currently rejects nodes with
// more than one outgoing edge, which keeps every run strictly sequential.
type Compiled struct {
	name         string
	schema       *state.Schema
	entryPoint   string
	nodes        map[string]Node
	order        []string
	edges        map[string]Edge
	reach        map[string]Reach
	predecessors map[string][]string
	cyclic       bool
}

// Name returns the graph name.
func (c *Compiled) Name() string { return c.name }

// Schema returns the state schema shared by all nodes.
func (c *Compiled) Schema() *state.Schema { return c.schema }

// EntryPoint returns the entry node ID.
func (c *Compiled) EntryPoint() string { return c.entryPoint }

// NodeIDs returns the node ids in registration order.
func (c *Compiled) NodeIDs() []string {
	return append([]string(nil), c.order...)
}

// HasNode checks if a node exists in the graph.
func (c *Compiled) HasNode(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

// Node returns the registered node.
func (c *Compiled) Node(id string) (Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// Edge returns the outgoing edge of a node.
func (c *Compiled) Edge(id string) (Edge, bool) {
	e, ok := c.edges[id]
	if !ok {
		return Edge{}, false
	}
	return e.clone(), true
}

// Successors returns the nodes the given node can hand off to, END excluded.
// Conditional targets are included; which one is taken is decided at run time.
func (c *Compiled) Successors(id string) []string {
	e, ok := c.edges[id]
	if !ok {
		return nil
	}
	var out []string
	for _, dst := range e.Destinations() {
		if dst != END {
			out = append(out, dst)
		}
	}
	return out
}

// Predecessors returns the nodes with an edge leading to id, in registration order.
func (c *Compiled) Predecessors(id string) []string {
	return append([]string(nil), c.predecessors[id]...)
}

// Reachability reports whether id is reached through static edges or only
// through a conditional choice. Unknown ids report ReachNone.
func (c *Compiled) Reachability(id string) Reach {
	return c.reach[id]
}

// Cyclic reports whether any path revisits a node.
func (c *Compiled) Cyclic() bool { return c.cyclic }

// NodeInfo describes one node in a Topology
type NodeInfo struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Reach       Reach  `json:"reach"`
}

// EdgeInfo describes one edge in a Topology
type EdgeInfo struct {
	Source  string   `json:"source"`
	Kind    EdgeKind `json:"kind"`
	Targets []string `json:"targets"`
}

// Topology is a plain, comparable description of a compiled graph.
// Compiling the same definition twice yields equal topologies.
type Topology struct {
	Name       string     `json:"name"`
	Schema     string     `json:"schema"`
	EntryPoint string     `json:"entry_point"`
	Cyclic     bool       `json:"cyclic"`
	Nodes      []NodeInfo `json:"nodes"`
	Edges      []EdgeInfo `json:"edges"`
}

// Topology returns the structure of the graph in registration order.
func (c *Compiled) Topology() Topology {
	t := Topology{
		Name:       c.name,
		EntryPoint: c.entryPoint,
		Cyclic:     c.cyclic,
		Nodes:      make([]NodeInfo, 0, len(c.order)),
		Edges:      make([]EdgeInfo, 0, len(c.order)),
	}
	if c.schema != nil {
		t.Schema = c.schema.Name()
	}
	for _, id := range c.order {
		n := c.nodes[id]
		t.Nodes = append(t.Nodes, NodeInfo{ID: id, Description: n.Description, Reach: c.reach[id]})
		e := c.edges[id]
		t.Edges = append(t.Edges, EdgeInfo{Source: id, Kind: e.Kind, Targets: e.Destinations()})
	}
	return t
}
