// Package cli implements the modgraph command-line interface.
//
// modgraph shows the module graph of a Go module, as printed by
// `go mod graph`, and lets you explore who requires what.
//
// # Commands
//
// The main commands are:
//   - preview: Serve an interactive graph preview in the browser
//   - graph: Print or render the graph for one selection
//   - modules: List the modules in the graph with their versions
//   - cache: Manage the scan and render cache
//   - completion: Generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
//
// # Example
//
//	import "github.com/matzehuels/modgraph/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/modgraph/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "modgraph explores Go module dependency graphs",
		Long:         `modgraph renders the output of 'go mod graph' as an interactive, filterable graph so you can see which modules pull in a dependency and at which versions.`,
		Version:      buildinfo.ResolvedVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			registerLogHooks(c.Logger)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/modgraph/config.toml)")

	root.AddCommand(c.previewCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.modulesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
