package graph

// Reach says how a node can be reached from the entry point
type Reach string

const (
	// ReachNone means no path from the entry point leads to the node
	ReachNone Reach = ""
	// ReachStatic means a path of static edges leads to the node
	ReachStatic Reach = "static"
	// ReachConditional means the node is reachable only through a router choice
	ReachConditional Reach = "conditional"
)

// reachability walks from entry twice: once over static edges only, once over
// static edges plus every declared conditional target.
func reachability(entry string, outgoing map[string][]Edge) map[string]Reach {
	static := walk(entry, outgoing, false)
	all := walk(entry, outgoing, true)

	reach := make(map[string]Reach, len(all))
	for id := range all {
		if static[id] {
			reach[id] = ReachStatic
			continue
		}
		reach[id] = ReachConditional
	}
	return reach
}

func walk(entry string, outgoing map[string][]Edge, followConditional bool) map[string]bool {
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range outgoing[id] {
			if e.Kind == EdgeConditional && !followConditional {
				continue
			}
			for _, dst := range e.Destinations() {
				if dst == END || seen[dst] {
					continue
				}
				seen[dst] = true
				queue = append(queue, dst)
			}
		}
	}
	return seen
}

// hasCycle detects any cycle in the directed graph using DFS with coloring.
// Conditional targets count as edges; cycles are legal and bounded at run time.
func hasCycle(order []string, edges map[string]Edge) bool {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int, len(order))
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		edge := edges[u]
		for _, v := range edge.Destinations() {
			if v == END {
				continue
			}
			if color[v] == gray {
				return true // back-edge
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}
	for _, id := range order {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
