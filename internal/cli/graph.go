package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/modgraph/internal/config"
	"github.com/matzehuels/modgraph/pkg/cache"
	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/preview"
	"github.com/matzehuels/modgraph/pkg/render"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	module   string // selected module, or all_mods
	output   string // output file; DOT on stdout when empty
	maxNodes int    // all-modules node cap override
	layout   string // Graphviz layout engine override
	noCache  bool   // bypass the scan and render cache
}

// graphCommand creates the graph command, the non-interactive counterpart of
// preview.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{module: modgraph.AllModules}

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Print or render the module graph",
		Long: `Print the module graph of the Go module in dir (default ".") as Graphviz DOT.

With --module, only the modules that directly or transitively require the
selected module are shown. With --output, the graph is written to a file;
.dot and .gv files get DOT text, .svg, .png and .pdf files are rendered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-nodes") {
				cfg.MaxNodes = opts.maxNodes
			}
			if opts.layout != "" {
				cfg.Layout = opts.layout
			}
			return c.runGraph(cmd.Context(), cfg, dirArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.module, "module", "m", opts.module, "show what requires this module (default: all modules)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (.dot, .gv, .svg, .png, .pdf)")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", modgraph.MaxAllModulesNodes, "largest graph drawn when showing all modules")
	cmd.Flags().StringVar(&opts.layout, "layout", "", "Graphviz layout engine (dot, neato, circo, ...)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the scan and render cache")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, cfg config.Config, dir string, opts graphOpts) error {
	if err := errors.ValidateModuleName(opts.module); err != nil {
		return err
	}

	kv, err := newCache(ctx, cfg.Cache, opts.noCache)
	if err != nil {
		return err
	}
	defer kv.Close()

	g, err := c.scanModule(ctx, cfg, kv, dir)
	if err != nil {
		return err
	}
	if opts.module != modgraph.AllModules && !g.HasNode(opts.module) {
		printWarning("%s is not in the module graph", opts.module)
	}

	v := g.Text(opts.module, cfg.MaxNodes)
	if v.Warning != "" {
		printWarning("%s", v.Warning)
	}

	if opts.output == "" {
		fmt.Fprintln(stdout, v.Source)
		return nil
	}

	data, err := c.graphOutput(ctx, cfg, kv, v, opts)
	if err != nil {
		return err
	}
	if data == nil {
		printWarning("No graph is generated")
		return nil
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeExportFailed, err, "write %s", opts.output)
	}

	printSuccess("Wrote %s graph", describeSelection(v.Selection))
	printStats(g.Stats())
	printFile(opts.output)
	return nil
}

// graphOutput encodes v in the format implied by the output extension.
// It returns nil when there is nothing to draw.
func (c *CLI) graphOutput(ctx context.Context, cfg config.Config, kv cache.Cache, v modgraph.View, opts graphOpts) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(opts.output)) {
	case ".dot", ".gv":
		return []byte(v.Source + "\n"), nil
	}

	format, err := errors.ExportFormat(opts.output)
	if err != nil {
		return nil, err
	}
	if v.Empty() {
		return nil, nil
	}

	prog := newProgress(c.Logger)
	svg, err := newRenderer(cfg, kv)(ctx, v.Source)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Rendered %d edges", v.Edges))

	if format == "svg" {
		return svg, nil
	}
	return render.Convert(ctx, svg, format)
}

// scanModule runs the scanner for the module in dir behind a spinner.
func (c *CLI) scanModule(ctx context.Context, cfg config.Config, kv cache.Cache, dir string) (*modgraph.Graph, error) {
	id, err := preview.DocumentID(dir)
	if err != nil {
		return nil, err
	}

	spinner := newSpinnerWithContext(ctx, "Running 'go mod graph'...")
	spinner.Start()
	g, err := modgraph.Load(ctx, newScanner(cfg, kv), id)
	spinner.Stop()

	if err != nil {
		if errors.Is(err, errors.ErrCodeScanFailed) || errors.Is(err, errors.ErrCodeToolNotFound) {
			printError("%s", modgraph.NeedScanNotice)
		}
		return nil, err
	}
	c.Logger.Debug("scanned module graph", "dir", id, "modules", g.NodeCount(), "edges", g.EdgeCount())
	return g, nil
}

func dirArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func describeSelection(selection string) string {
	if selection == modgraph.AllModules {
		return "all-modules"
	}
	return selection
}
