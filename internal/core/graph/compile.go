package graph

import (
	"fmt"
)

// Compile validates the definition and returns an immutable graph.
// It is all-or-nothing: on failure the returned *ValidationError lists every
// violation found, in a stable order, and no Compiled is produced.
// The builder may keep changing afterwards without affecting the result.
func (g *Graph) Compile() (*Compiled, error) {
	var violations []Violation
	add := func(nodeID string, err error) {
		violations = append(violations, Violation{NodeID: nodeID, Err: err})
	}

	if g.name == "" {
		add("", ErrInvalidGraphName)
	}
	if g.schema == nil {
		add("", ErrNilSchema)
	}
	entryKnown := false
	switch _, ok := g.nodes[g.entryPoint]; {
	case g.entryPoint == "":
		add("", ErrNoEntryPoint)
	case !ok:
		add("", &UnknownNodeError{NodeID: g.entryPoint, Ref: "entry point"})
	default:
		entryKnown = true
	}

	outgoing := make(map[string][]Edge, len(g.nodes))
	for _, e := range g.edges {
		if _, ok := g.nodes[e.Source]; !ok {
			add("", &UnknownNodeError{NodeID: e.Source, Ref: "edge source"})
			continue
		}
		switch e.Kind {
		case EdgeStatic:
			if _, ok := g.nodes[e.Target]; !ok {
				add(e.Source, &UnknownNodeError{NodeID: e.Target, Ref: "edge target"})
			}
		case EdgeConditional:
			if e.Router == nil {
				add(e.Source, ErrNilRouter)
			}
			if len(e.Targets) == 0 {
				add(e.Source, ErrNoRouteTargets)
			}
			for _, t := range e.Targets {
				if _, ok := g.nodes[t]; !ok && t != END {
					add(e.Source, &UnknownNodeError{NodeID: t, Ref: "conditional target"})
				}
			}
		}
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	for _, id := range g.order {
		switch n := len(outgoing[id]); {
		case n == 0:
			add(id, ErrNoOutgoingEdge)
		case n > 1:
			add(id, fmt.Errorf("%w: %d edges", ErrMultipleEdges, n))
		}
	}

	var reach map[string]Reach
	if entryKnown {
		reach = reachability(g.entryPoint, outgoing)
		for _, id := range g.order {
			if reach[id] == ReachNone {
				add(id, ErrUnreachable)
			}
		}
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Graph: g.name, Violations: violations}
	}
	return g.freeze(outgoing, reach), nil
}

// freeze copies the validated definition into a Compiled
func (g *Graph) freeze(outgoing map[string][]Edge, reach map[string]Reach) *Compiled {
	c := &Compiled{
		name:         g.name,
		schema:       g.schema,
		entryPoint:   g.entryPoint,
		nodes:        make(map[string]Node, len(g.nodes)),
		order:        append([]string(nil), g.order...),
		edges:        make(map[string]Edge, len(g.nodes)),
		reach:        reach,
		predecessors: make(map[string][]string, len(g.nodes)),
	}
	for _, id := range g.order {
		c.nodes[id] = *g.nodes[id]
		edge := outgoing[id][0].clone()
		c.edges[id] = edge
		for _, dst := range edge.Destinations() {
			if dst == END || contains(c.predecessors[dst], id) {
				continue
			}
			c.predecessors[dst] = append(c.predecessors[dst], id)
		}
	}
	c.cyclic = hasCycle(c.order, c.edges)
	return c
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
