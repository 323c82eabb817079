package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type validateOptions struct {
	strict bool
}

func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration file",
		Long: `Validate a server configuration file.

This command checks:
  - File format (YAML or JSON)
  - Field values (mode, port, storage driver, exporters)
  - External tool definitions (endpoint URL, HTTP method, parameter schema)
  - The referenced tool manifest, when one is configured
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  dynamic-mcp validate server.yaml

  # Strict validation (fail on missing env vars)
  dynamic-mcp validate server.yaml --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Fail on undefined environment variables")

	return cmd
}

func (a *App) validateConfig(path string, opts *validateOptions) error {
	cfg, err := loadConfig(path, opts.strict)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tools, err := catalog(cfg)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	_, _ = fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Server.Name)
	_, _ = fmt.Fprintf(a.stdout, "  Mode: %s\n", cfg.Server.Mode)

	_, _ = fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(a.stdout, "  REST address: %s\n", restAddress(cfg.Server))
	_, _ = fmt.Fprintf(a.stdout, "  Invocation timeout: %s\n", cfg.Invocation.Timeout.Duration())
	_, _ = fmt.Fprintf(a.stdout, "  Item storage: %s\n", cfg.Storage.Items.Driver)
	_, _ = fmt.Fprintf(a.stdout, "  Tools: %d\n", len(tools))

	if len(cfg.Tools.External) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  External tools: %d\n", len(cfg.Tools.External))
		for _, ext := range cfg.Tools.External {
			_, _ = fmt.Fprintf(a.stdout, "    - %s (%s)\n", ext.Name, ext.EndpointURL)
		}
	}
	if cfg.Tools.Manifest != "" {
		_, _ = fmt.Fprintf(a.stdout, "  Manifest: %s (watch=%t)\n", cfg.Tools.Manifest, cfg.Tools.Watch)
	}
	if n := len(cfg.Notification.Endpoints); n > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Webhook endpoints: %d\n", n)
	}

	return nil
}
