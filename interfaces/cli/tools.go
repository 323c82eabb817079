package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

type toolsOptions struct {
	configPath string
	verbose    bool
	jsonOutput bool
}

func (a *App) newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tool catalog",
	}
	cmd.AddCommand(a.newToolsListCmd())
	return cmd
}

func (a *App) newToolsListCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools a server would start with",
		Long: `List the tools registered at startup: the built-in demo tools, the
REST routes exposed as tools, configured external tools and the tools of
the configured manifest.

Examples:
  # List the default tool set
  dynamic-mcp tools list

  # Include parameters and tags
  dynamic-mcp tools list -c server.yaml -v

  # Full descriptors as JSON
  dynamic-mcp tools list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTools(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show parameters and tags")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output descriptors as JSON")

	return cmd
}

func (a *App) listTools(opts *toolsOptions) error {
	cfg, err := loadConfig(opts.configPath, false)
	if err != nil {
		return err
	}
	tools, err := catalog(cfg)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		views := make([]tool.View, len(tools))
		for i, d := range tools {
			views[i] = d.View()
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	_, _ = fmt.Fprintf(a.stdout, "Tools (%d):\n\n", len(tools))
	for _, d := range tools {
		_, _ = fmt.Fprintf(a.stdout, "  %s\n", d.Name())
		if desc := firstLine(d.Description()); desc != "" {
			_, _ = fmt.Fprintf(a.stdout, "    %s\n", desc)
		}
		if !opts.verbose {
			continue
		}
		if tags := d.Tags(); len(tags) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "    Tags: %s\n", strings.Join(tags, ", "))
		}
		for _, p := range d.Schema().Parameters() {
			req := ""
			if p.Required {
				req = " (required)"
			}
			_, _ = fmt.Fprintf(a.stdout, "    - %s: %s%s\n", p.Name, p.Type, req)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
