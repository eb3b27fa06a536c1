package modgraph

import (
	"fmt"
	"slices"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
)

const (
	// AllModules is the selection that shows the whole graph.
	AllModules = "all_mods"

	// MaxAllModulesNodes is the default node cap for the all-modules view.
	MaxAllModulesNodes = 200

	// CurrentVersion is the version given to the main module, which
	// `go mod graph` prints without one.
	CurrentVersion = "Current"
)

// Edge is one requirement: From requires To.
type Edge struct {
	Name int            // Insertion index, unique within the graph
	From module.Version // Requiring module
	To   module.Version // Required module
}

// Label renders the version transition, e.g. "v1.0.0 -> v2.1.0".
func (e Edge) Label() string {
	return e.From.Version + " -> " + e.To.Version
}

// DOT renders the edge as a Graphviz statement terminated by a newline.
func (e Edge) DOT() string {
	return fmt.Sprintf("%q -> %q [label=%q]\n", e.From.Path, e.To.Path, e.Label())
}

// Graph is a directed multigraph of module requirements.
//
// The zero value is not usable - use New or Parse.
type Graph struct {
	nodes    map[string]struct{}
	edges    []Edge
	incoming map[string][]int // module path -> indexes into edges
	outgoing map[string][]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		incoming: make(map[string][]int),
		outgoing: make(map[string][]int),
	}
}

// AddEdge records that from requires to and returns the stored edge. Both
// endpoints become nodes. Repeated pairs are kept as separate edges.
func (g *Graph) AddEdge(from, to module.Version) Edge {
	e := Edge{Name: len(g.edges), From: from, To: to}
	g.edges = append(g.edges, e)
	g.nodes[from.Path] = struct{}{}
	g.nodes[to.Path] = struct{}{}
	g.outgoing[from.Path] = append(g.outgoing[from.Path], e.Name)
	g.incoming[to.Path] = append(g.incoming[to.Path], e.Name)
	return e
}

// NodeCount returns the number of distinct modules.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of requirement edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// HasNode reports whether path is an endpoint of any edge.
func (g *Graph) HasNode(path string) bool {
	_, ok := g.nodes[path]
	return ok
}

// Nodes returns all module paths in sorted order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// Incoming returns the edges requiring path, in insertion order.
func (g *Graph) Incoming(path string) []Edge { return g.collect(g.incoming[path]) }

// Outgoing returns the edges path requires, in insertion order.
func (g *Graph) Outgoing(path string) []Edge { return g.collect(g.outgoing[path]) }

func (g *Graph) collect(idx []int) []Edge {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Modules returns the selectable modules: every module that some other
// module requires, plus [AllModules], sorted.
func (g *Graph) Modules() []string {
	out := make([]string, 0, len(g.incoming)+1)
	for path := range g.incoming {
		out = append(out, path)
	}
	out = append(out, AllModules)
	slices.Sort(out)
	return out
}

// Versions returns the distinct versions path is required at, in semver
// order. Non-semver versions sort first.
func (g *Graph) Versions(path string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range g.incoming[path] {
		v := g.edges[i].To.Version
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	semver.Sort(out)
	return out
}

// Dependents returns every module that directly or transitively requires
// path, sorted. path itself is included only if it sits on a cycle.
func (g *Graph) Dependents(path string) []string {
	var out []string
	for _, e := range g.walk(path) {
		out = append(out, e.From.Path)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// walk returns every incoming edge met while walking outward from start.
// Each module is expanded once.
func (g *Graph) walk(start string) []Edge {
	visited := map[string]bool{start: true}
	stack := []string{start}
	var out []Edge
	for len(stack) > 0 {
		to := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, i := range g.incoming[to] {
			e := g.edges[i]
			out = append(out, e)
			if !visited[e.From.Path] {
				visited[e.From.Path] = true
				stack = append(stack, e.From.Path)
			}
		}
	}
	return out
}

// Stats summarizes a graph for logging.
type Stats struct {
	Nodes int
	Edges int
	Roots int // Modules nothing requires, normally just the main module
}

// Stats returns node, edge and root counts.
func (g *Graph) Stats() Stats {
	return Stats{
		Nodes: len(g.nodes),
		Edges: len(g.edges),
		Roots: len(g.nodes) - len(g.incoming),
	}
}
