package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/modgraph/internal/config"
	"github.com/matzehuels/modgraph/pkg/modgraph"
)

// moduleInfo is one row of the modules listing.
type moduleInfo struct {
	Path       string   `json:"path"`
	Versions   []string `json:"versions"`
	Dependents int      `json:"dependents"`
}

// modulesCommand creates the modules command.
func (c *CLI) modulesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "modules [dir]",
		Short: "List required modules with their versions",
		Long: `List every module required in the module graph of dir (default "."),
with the versions it is required at and how many modules depend on it.
Modules required at more than one version are highlighted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.runModules(cmd.Context(), cfg, dirArg(args), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) runModules(ctx context.Context, cfg config.Config, dir string, asJSON bool) error {
	kv, err := newCache(ctx, cfg.Cache, false)
	if err != nil {
		return err
	}
	defer kv.Close()

	g, err := c.scanModule(ctx, cfg, kv, dir)
	if err != nil {
		return err
	}
	infos := listModules(g)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	printStats(g.Stats())
	for _, m := range infos {
		versions := strings.Join(m.Versions, ", ")
		if len(m.Versions) > 1 {
			versions = StyleWarning.Render(versions)
		} else {
			versions = StyleDim.Render(versions)
		}
		fmt.Fprintf(stdout, "%s %s %s\n", StyleValue.Render(m.Path), versions,
			StyleDim.Render(fmt.Sprintf("(%d dependents)", m.Dependents)))
	}
	if len(infos) > 0 {
		printNextStep("Show what requires a module", "modgraph graph -m "+infos[0].Path+" -o deps.svg")
	}
	return nil
}

// listModules describes every selectable module except the all-modules
// sentinel.
func listModules(g *modgraph.Graph) []moduleInfo {
	var out []moduleInfo
	for _, path := range g.Modules() {
		if path == modgraph.AllModules {
			continue
		}
		out = append(out, moduleInfo{
			Path:       path,
			Versions:   g.Versions(path),
			Dependents: len(g.Dependents(path)),
		})
	}
	return out
}
