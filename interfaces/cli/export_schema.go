package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type exportSchemaOptions struct {
	configPath string
	outputPath string
}

func (a *App) newExportSchemaCmd() *cobra.Command {
	opts := &exportSchemaOptions{}

	cmd := &cobra.Command{
		Use:   "export-schema",
		Short: "Export the input schemas of the tool catalog",
		Long: `Export the JSON Schema describing each tool's arguments, keyed by tool
name. These are the schemas MCP clients and REST callers validate against.

Examples:
  # Export schemas to stdout
  dynamic-mcp export-schema

  # Export the schemas of a configured server to a file
  dynamic-mcp export-schema -c server.yaml -o schemas.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportSchema(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path (default: stdout)")

	return cmd
}

func (a *App) exportSchema(opts *exportSchemaOptions) error {
	cfg, err := loadConfig(opts.configPath, false)
	if err != nil {
		return err
	}
	tools, err := catalog(cfg)
	if err != nil {
		return err
	}

	schemas := make(map[string]json.RawMessage, len(tools))
	for _, d := range tools {
		schemas[d.Name()] = d.Schema().JSONSchema()
	}
	data, err := json.MarshalIndent(schemas, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schemas: %w", err)
	}

	if opts.outputPath == "" {
		_, _ = fmt.Fprintln(a.stdout, string(data))
		return nil
	}

	if err := os.WriteFile(opts.outputPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "Schemas exported to %s\n", opts.outputPath)
	return nil
}
