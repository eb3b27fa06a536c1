package modgraph

import (
	"fmt"
	"strings"
)

// EmptyDigraph is the source of a view with no edges.
const EmptyDigraph = "digraph G{\n}"

// View is the Graphviz source for one selection.
type View struct {
	Selection string // AllModules or a module path
	Source    string // "digraph G{\n...}"
	Edges     int    // Number of edge statements in Source
	Warning   string // Set when the all-modules view exceeded the node cap
}

// Empty reports whether the view has nothing to draw.
func (v View) Empty() bool { return v.Edges == 0 }

// Text builds the view for selection. maxNodes caps the all-modules view;
// zero or negative means [MaxAllModulesNodes]. Selecting a module that is
// not in the graph yields an empty view.
func (g *Graph) Text(selection string, maxNodes int) View {
	if maxNodes <= 0 {
		maxNodes = MaxAllModulesNodes
	}

	var edges []Edge
	v := View{Selection: selection}
	switch {
	case selection == AllModules && g.NodeCount() > maxNodes:
		v.Warning = fmt.Sprintf("the graph has %d modules, more than the %d that can be drawn at once; select a module to see what requires it",
			g.NodeCount(), maxNodes)
	case selection == AllModules:
		edges = g.edges
	default:
		edges = g.walk(selection)
	}

	v.Source = writeDigraph(edges)
	v.Edges = len(edges)
	return v
}

func writeDigraph(edges []Edge) string {
	var b strings.Builder
	b.WriteString("digraph G{\n")
	for _, e := range edges {
		b.WriteString(e.DOT())
	}
	b.WriteString("}")
	return b.String()
}
