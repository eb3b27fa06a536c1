package preview

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/modgraph/pkg/errors"
)

type promptFunc func(ctx context.Context, dir string) (string, bool, error)

func (f promptFunc) PromptDestination(ctx context.Context, dir string) (string, bool, error) {
	return f(ctx, dir)
}

func fakeConvert(ctx context.Context, svg []byte, format string) ([]byte, error) {
	return append([]byte(format+":"), svg...), nil
}

func TestFileExporter(t *testing.T) {
	const svg = "<svg>graph</svg>"

	tests := []struct {
		name string
		dest string
		want string
	}{
		{"svg written as is", "out.svg", svg},
		{"png converted", "out.png", "png:" + svg},
		{"pdf converted", "out.PDF", "pdf:" + svg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			e := &FileExporter{Prompter: FixedPrompter{Path: tt.dest}, Convert: fakeConvert}

			require.NoError(t, e.Export(context.Background(), "digraph G{\n}", []byte(svg), dir))

			data, err := os.ReadFile(filepath.Join(dir, tt.dest))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFileExporterCancelledPromptIsNoop(t *testing.T) {
	dir := t.TempDir()
	e := &FileExporter{
		Prompter: promptFunc(func(ctx context.Context, d string) (string, bool, error) {
			assert.Equal(t, dir, d)
			return "", false, nil
		}),
		Convert: func(context.Context, []byte, string) ([]byte, error) {
			t.Fatal("convert called after cancel")
			return nil, nil
		},
	}

	require.NoError(t, e.Export(context.Background(), "digraph G{\n}", []byte("<svg/>"), dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileExporterEmptyFixedPrompter(t *testing.T) {
	e := NewFileExporter(FixedPrompter{})
	assert.NoError(t, e.Export(context.Background(), "", nil, t.TempDir()))
}

func TestFileExporterAbsoluteDestination(t *testing.T) {
	out := filepath.Join(t.TempDir(), "graph.svg")
	e := NewFileExporter(FixedPrompter{Path: out})

	require.NoError(t, e.Export(context.Background(), "", []byte("<svg/>"), t.TempDir()))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestFileExporterErrors(t *testing.T) {
	tests := []struct {
		name     string
		exporter *FileExporter
		image    []byte
		source   string
		wantCode errors.Code
	}{
		{
			name:     "no prompter",
			exporter: &FileExporter{},
			image:    []byte("<svg/>"),
			wantCode: errors.ErrCodeUnsupported,
		},
		{
			name:     "unsupported extension",
			exporter: NewFileExporter(FixedPrompter{Path: "out.jpg"}),
			image:    []byte("<svg/>"),
			wantCode: errors.ErrCodeInvalidFormat,
		},
		{
			name: "prompt failed",
			exporter: NewFileExporter(promptFunc(func(context.Context, string) (string, bool, error) {
				return "", false, stderrors.New("no terminal")
			})),
			image:    []byte("<svg/>"),
			wantCode: errors.ErrCodeExportFailed,
		},
		{
			name:     "nothing to export",
			exporter: NewFileExporter(FixedPrompter{Path: "out.svg"}),
			wantCode: errors.ErrCodeExportFailed,
		},
		{
			name: "convert failed",
			exporter: &FileExporter{
				Prompter: FixedPrompter{Path: "out.png"},
				Convert: func(context.Context, []byte, string) ([]byte, error) {
					return nil, errors.New(errors.ErrCodeToolNotFound, "rsvg-convert not found")
				},
			},
			image:    []byte("<svg/>"),
			wantCode: errors.ErrCodeToolNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.exporter.Export(context.Background(), tt.source, tt.image, t.TempDir())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
		})
	}
}

func TestFileExporterRendersMissingImage(t *testing.T) {
	dir := t.TempDir()
	var rendered string
	e := &FileExporter{
		Prompter: FixedPrompter{Path: "out.svg"},
		Render: func(ctx context.Context, source string) ([]byte, error) {
			rendered = source
			return []byte("<svg>drawn</svg>"), nil
		},
	}

	require.NoError(t, e.Export(context.Background(), "digraph G{\n\"a\" -> \"b\"\n}", nil, dir))
	assert.Equal(t, "digraph G{\n\"a\" -> \"b\"\n}", rendered)

	data, err := os.ReadFile(filepath.Join(dir, "out.svg"))
	require.NoError(t, err)
	assert.Equal(t, "<svg>drawn</svg>", string(data))
}
