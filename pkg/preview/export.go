package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/render"
)

// Exporter saves the preview's current image somewhere the user chooses.
type Exporter interface {
	// Export writes image (the SVG shown in the page) for the graph source
	// of a document in dir. A cancelled destination prompt is not an error.
	Export(ctx context.Context, source string, image []byte, dir string) error
}

// DestinationPrompter asks the user where to save an export.
type DestinationPrompter interface {
	// PromptDestination returns the chosen path. ok is false when the user
	// cancelled. dir is the document directory, offered as a starting point.
	PromptDestination(ctx context.Context, dir string) (path string, ok bool, err error)
}

// FixedPrompter always answers with Path. An empty Path acts as a
// cancelled prompt.
type FixedPrompter struct {
	Path string
}

func (p FixedPrompter) PromptDestination(ctx context.Context, dir string) (string, bool, error) {
	return p.Path, p.Path != "", nil
}

// FileExporter writes exports to the local file system. The format follows
// the destination's extension: .svg is written as is, .png and .pdf are
// converted from the SVG.
type FileExporter struct {
	Prompter DestinationPrompter

	// Render draws source when the page sent no image. Defaults to
	// [render.Graphviz].
	Render render.Func

	// Convert turns SVG into another format. Defaults to [render.Convert].
	Convert func(ctx context.Context, svg []byte, format string) ([]byte, error)
}

// NewFileExporter returns an exporter asking p for destinations.
func NewFileExporter(p DestinationPrompter) *FileExporter {
	return &FileExporter{Prompter: p}
}

func (e *FileExporter) Export(ctx context.Context, source string, image []byte, dir string) error {
	if e.Prompter == nil {
		return errors.New(errors.ErrCodeUnsupported, "export is not available")
	}
	path, ok, err := e.Prompter.PromptDestination(ctx, dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, err, "choose export destination")
	}
	if !ok || path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}

	format, err := errors.ExportFormat(path)
	if err != nil {
		return err
	}

	if len(image) == 0 {
		if image, err = e.draw(ctx, source); err != nil {
			return err
		}
	}

	data := image
	if format != "svg" {
		convert := e.Convert
		if convert == nil {
			convert = render.Convert
		}
		if data, err = convert(ctx, image, format); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, err, "write %s", path)
	}
	return nil
}

func (e *FileExporter) draw(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New(errors.ErrCodeExportFailed, "nothing to export")
	}
	r := e.Render
	if r == nil {
		r = render.Graphviz
	}
	img, err := r(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("render export: %w", err)
	}
	return img, nil
}

var _ Exporter = (*FileExporter)(nil)
