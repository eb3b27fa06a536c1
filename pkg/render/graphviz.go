package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/modgraph/pkg/errors"
)

// Func renders graph source text into image bytes. Implementations must
// return promptly once ctx is cancelled.
type Func func(ctx context.Context, source string) ([]byte, error)

// Options configures the Graphviz renderer.
type Options struct {
	// Layout is the Graphviz layout engine ("dot", "neato", "circo", ...).
	// Empty uses Graphviz's default, dot.
	Layout string
}

// Graphviz renders DOT source to SVG with the default options.
func Graphviz(ctx context.Context, source string) ([]byte, error) {
	return NewGraphviz(Options{})(ctx, source)
}

// NewGraphviz returns a Func rendering DOT source to SVG.
func NewGraphviz(opts Options) Func {
	return func(ctx context.Context, source string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		gv, err := graphviz.New(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "init graphviz")
		}
		defer gv.Close()
		if opts.Layout != "" {
			gv.SetLayout(graphviz.Layout(opts.Layout))
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, err := graphviz.ParseBytes([]byte(source))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "parse DOT")
		}
		defer g.Close()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "render")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return normalizeViewBox(buf.Bytes()), nil
	}
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the image scales with its
// container: a zero-origin viewBox plus explicit width and height.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	loc := svgTagRe.FindIndex(svg)
	if loc == nil {
		return svg
	}
	out := make([]byte, 0, len(svg)+len(root))
	out = append(out, svg[:loc[0]]...)
	out = append(out, root...)
	return append(out, svg[loc[1]:]...)
}
