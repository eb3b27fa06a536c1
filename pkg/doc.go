// Package pkg provides the core libraries for modgraph, the interactive
// `go mod graph` preview.
//
// # Overview
//
// modgraph scans a Go module with `go mod graph`, builds a graph of module
// requirements, and shows it in a browser page that can narrow the view to
// everything requiring one module. The pkg directory is organized into three
// main areas:
//
//  1. Domain: [modgraph] (graph model and DOT views), [render] (Graphviz and
//     format conversion)
//  2. Orchestration: [preview] (sessions, server, export), [scheduler]
//     (latest-wins rendering), [messenger] and [protocol] (page channel)
//  3. Infrastructure: [cache] (scan and render cache), [archive] (view state),
//     [observability] (hooks), [errors] (codes and validation)
//
// # Architecture
//
// The data flow for one preview page:
//
//	go mod graph
//	     ↓
//	[modgraph] package (parse → Graph → View)
//	     ↓
//	[scheduler] package (one render at a time, newest request wins)
//	     ↓
//	[render] package (DOT → SVG, cached)
//	     ↓
//	[messenger] package (success/failure messages to the page)
//
// # Quick Start
//
// Scan a module and render everything that requires golang.org/x/mod:
//
//	g, err := modgraph.Load(ctx, modgraph.NewGoModGraph("go"), dir)
//	if err != nil {
//	    return err
//	}
//	v := g.Text("golang.org/x/mod", 0)
//	svg, err := render.Graphviz(ctx, v.Source)
//
// Serve previews for every module below root:
//
//	mgr := preview.NewManager(preview.Options{Render: render.Graphviz})
//	err := preview.NewServer(mgr, root).ListenAndServe(ctx, "127.0.0.1:7878")
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...
//
// The Redis and MongoDB archive tests run only when MODGRAPH_TEST_REDIS_URL
// or MODGRAPH_TEST_MONGO_URI is set.
//
// [modgraph]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/modgraph
// [render]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/render
// [preview]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/preview
// [scheduler]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/scheduler
// [messenger]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/messenger
// [protocol]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/protocol
// [cache]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/cache
// [archive]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/archive
// [observability]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/modgraph/pkg/errors
package pkg
