package graph

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Overlay carries run data to highlight on a rendered graph.
type Overlay struct {
	Visited []string
	Current string
}

// Mermaid renders the graph as a Mermaid flowchart.
// The entry point is drawn as a circle and conditional edges as dotted arrows.
// Overlay styles are applied when overlay is non-nil.
func (c *Compiled) Mermaid(overlay *Overlay) string {
	ids := c.mermaidIDs()
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range c.order {
		safeID := ids[id]
		opener, closer := "[", "]"
		if id == c.entryPoint {
			opener, closer = "((", "))"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, mermaidLabel(id), closer))

		e := c.edges[id]
		for _, dst := range e.Destinations() {
			arrow := "-->"
			if e.Kind == EdgeConditional {
				arrow = "-.->"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeID, arrow, ids[dst]))
		}
	}
	sb.WriteString(fmt.Sprintf("    %s((\"END\"))\n", ids[END]))

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := ids[id]
			if seen[safeID] || !c.HasNode(id) {
				continue
			}
			seen[safeID] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
		}
		if overlay.Current != "" && c.HasNode(overlay.Current) {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", ids[overlay.Current]))
		}
	}

	return sb.String()
}

// mermaidIDs maps END and every node to a distinct Mermaid identifier.
// Ids that sanitize to a taken name get their registration index appended.
func (c *Compiled) mermaidIDs() map[string]string {
	ids := map[string]string{END: END}
	taken := map[string]bool{END: true}
	for i, id := range c.order {
		safe := sanitizeMermaidID(id)
		if taken[safe] {
			safe += "_" + strconv.Itoa(i)
			for taken[safe] {
				safe += "_"
			}
		}
		taken[safe] = true
		ids[id] = safe
	}
	return ids
}

func sanitizeMermaidID(id string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, id)
	// "end" is a Mermaid keyword
	if strings.EqualFold(safe, "end") {
		safe += "_"
	}
	return safe
}

func mermaidLabel(id string) string {
	return strings.ReplaceAll(id, `"`, "'")
}
