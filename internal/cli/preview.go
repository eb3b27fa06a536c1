package cli

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/modgraph/internal/config"
	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/preview"
)

// previewOpts holds the command-line flags for the preview command.
type previewOpts struct {
	listen   string // address to serve on
	exportTo string // fixed export destination instead of prompting
	archive  string // archive backend override
	noCache  bool   // bypass the scan and render cache
}

// previewCommand creates the preview command.
func (c *CLI) previewCommand() *cobra.Command {
	var opts previewOpts
	var maxNodes int

	cmd := &cobra.Command{
		Use:   "preview [dir]",
		Short: "Serve an interactive module graph preview",
		Long: `Serve an interactive preview of the module graph of the Go module in dir
(default ".") and print its URL.

The page shows every module at first. Pick a module to see everything that
requires it. Export saves the current graph as PDF, PNG or SVG; you choose
the file in this terminal unless --export-to is set.

Other modules below dir can be opened with ?module=<relative path>.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if opts.listen != "" {
				cfg.Listen = opts.listen
			}
			if opts.archive != "" {
				cfg.Archive.Backend = opts.archive
			}
			if cmd.Flags().Changed("max-nodes") {
				cfg.MaxNodes = maxNodes
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runPreview(cmd.Context(), cfg, dirArg(args), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "address to serve on (default from config, 127.0.0.1:7878)")
	cmd.Flags().StringVar(&opts.exportTo, "export-to", "", "write exports to this file instead of prompting")
	cmd.Flags().StringVar(&opts.archive, "archive", "", "where to keep view state: none, memory, file, redis, mongo, sqlite")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "largest graph drawn when showing all modules")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the scan and render cache")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, cfg config.Config, dir string, opts previewOpts) error {
	root, err := preview.DocumentID(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		printWarning("%s has no go.mod; open a module with ?module=<path>", root)
	}

	cache, err := newCache(ctx, cfg.Cache, opts.noCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	store, err := newArchiveStore(ctx, cfg.Archive)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "open %s archive", cfg.Archive.Backend)
	}
	if store != nil {
		defer store.Close()
	}

	var prompter preview.DestinationPrompter = newTerminalPrompter(os.Stdin, os.Stderr)
	if opts.exportTo != "" {
		prompter = preview.FixedPrompter{Path: opts.exportTo}
	}

	mgr := preview.NewManager(preview.Options{
		Scanner:       newScanner(cfg, cache),
		Render:        newRenderer(cfg, cache),
		Exporter:      preview.NewFileExporter(prompter),
		Notifier:      newTerminalNotifier(os.Stderr),
		Archives:      store,
		ArchiveTTL:    cfg.Archive.TTL.Duration,
		MaxNodes:      cfg.MaxNodes,
		CancelTimeout: cfg.CancelTimeout.Duration,
		Logger:        c.Logger,
	})

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Listen, err)
	}

	printSuccess("Serving module graph preview")
	printKeyValue("Module", root)
	printKeyValue("URL", StyleLink.Render(previewURL(ln.Addr())))
	printDetail("Press Ctrl+C to stop")

	err = preview.NewServer(mgr, root).Serve(ctx, ln)
	if err != nil {
		return err
	}
	printInfo("Preview stopped")
	return ctx.Err()
}

// previewURL returns the browser URL for a listener address. Wildcard
// addresses are shown as localhost.
func previewURL(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "http://" + addr.String() + "/"
	}
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "localhost"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/"}
	return u.String()
}
