// Package render turns Graphviz source into images.
//
// # Overview
//
// [NewGraphviz] returns a [Func] that lays out DOT source in-process with
// go-graphviz and returns SVG. The preview page displays that SVG directly;
// exports convert it with [ToPDF] or [ToPNG], which shell out to
// rsvg-convert (librsvg).
//
//	svg, err := render.Graphviz(ctx, view.Source)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0) // 2x scale
//
// # Cancellation
//
// Graphviz cannot be interrupted once a layout starts, so the renderer checks
// its context between stages (engine start, parse, layout). A cancelled
// render returns the context's error at the next check. Callers that need a
// hard bound should combine this with the scheduler's cancel timeout.
//
// # Caching
//
// [Cached] wraps any Func with a [cache.Cache] keyed by the SHA-256 of the
// source, so reopening a preview of an unchanged module skips layout.
//
// # Dependencies
//
// In-process layout uses [github.com/goccy/go-graphviz]. PDF and PNG
// conversion requires librsvg: brew install librsvg (macOS),
// apt install librsvg2-bin (Linux).
package render
