// Package modgraph provides the module dependency multigraph built from
// `go mod graph` output.
//
// # Overview
//
// `go mod graph` prints one requirement per line:
//
//	example.com/app golang.org/x/mod@v0.18.0
//	golang.org/x/mod@v0.18.0 golang.org/x/tools@v0.13.0
//
// The first token is the requiring module and the second the required one.
// The main module appears without a version; its version is reported as
// [CurrentVersion]. [Parse] turns such text into a [Graph]. Lines of any other
// shape (blank lines, "go@1.21" toolchain entries, diagnostics) are ignored.
//
// # Graph Shape
//
// A [Graph] is a directed multigraph keyed by module path. A module required
// at several versions is still one node; each requirement line becomes its
// own [Edge] whose label records the version transition ("v1.2.0 -> v0.3.1").
// The node set is exactly the set of edge endpoints.
//
// # Views
//
// [Graph.Text] produces the Graphviz source for a selection:
//
//   - [AllModules] selects every edge, unless the graph has more than the node
//     cap (default [MaxAllModulesNodes]). Then the view carries a warning and
//     no edges, since the renderer cannot lay out graphs that large in
//     reasonable time.
//   - A module path selects the reverse-reachability subgraph: every edge met
//     while walking incoming edges outward from that module, i.e. everything
//     that directly or transitively requires it.
//
// The walk visits each module once, so cyclic requirement graphs terminate.
//
// # Scanning
//
// A [Scanner] produces the raw text. [GoModGraph] runs the go command;
// [Load] combines scanning and parsing and classifies failures:
// TOOL_NOT_FOUND when the go command is missing and SCAN_FAILED when it
// exits non-zero or writes diagnostics. [CachedScanner] keeps successful
// output in a [cache.Cache] until the module's go.mod or go.sum changes.
//
// # Concurrency
//
// A Graph is built once by Parse and never mutated afterwards, so it is safe
// for concurrent reads.
package modgraph
