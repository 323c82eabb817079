package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	infraconfig "github.com/felixgeelhaar/dynamic-mcp/infrastructure/config"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// serveOptions holds options for the serve command. Zero values leave the
// configuration file untouched.
type serveOptions struct {
	configPath string
	mode       string
	host       string
	port       int
	mcpAddr    string
	manifest   string
	watch      bool
	logLevel   string
}

func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool server",
		Long: `Start the tool server.

In http mode the REST API and the MCP streamable HTTP transport are served
on separate addresses. In stdio mode MCP frames are exchanged on
stdin/stdout and logs go to stderr.

Examples:
  # Serve with defaults (REST on 127.0.0.1:8000, MCP on 127.0.0.1:8001)
  dynamic-mcp serve

  # Serve MCP over stdio for a desktop client
  dynamic-mcp serve --mode stdio

  # Load a configuration file and watch a tool manifest
  dynamic-mcp serve -c server.yaml --manifest tools.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Transport mode: http or stdio")
	cmd.Flags().StringVar(&opts.host, "host", "", "REST listen host")
	cmd.Flags().IntVar(&opts.port, "port", 0, "REST listen port")
	cmd.Flags().StringVar(&opts.mcpAddr, "mcp-addr", "", "MCP HTTP listen address")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Path to an external tool manifest")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the manifest when it changes")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	cfg, err := loadConfig(opts.configPath, false)
	if err != nil {
		return err
	}
	if err := opts.apply(cfg); err != nil {
		return err
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.Format = cfg.Logging.Format
	if cfg.Server.Mode == config.ModeStdio {
		logConfig.Output = os.Stderr
	}
	logging.SetLogger(logging.New(logConfig))

	s, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(context.Background()); err != nil {
			logging.Warn().Add(logging.Component("cli")).Add(logging.ErrorField(err)).Msg("shutdown incomplete")
		}
	}()

	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Str("mode", cfg.Server.Mode)).
		Add(logging.Str("items_driver", cfg.Storage.Items.Driver)).
		Msg("starting server")

	return s.run(ctx)
}

// apply overlays the flags on cfg and validates the result.
func (o *serveOptions) apply(cfg *config.ServerConfig) error {
	if o.mode != "" {
		cfg.Server.Mode = o.mode
	}
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.mcpAddr != "" {
		cfg.Server.MCPAddr = o.mcpAddr
	}
	if o.manifest != "" {
		cfg.Tools.Manifest = o.manifest
	}
	if o.watch {
		cfg.Tools.Watch = true
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
		return fmt.Errorf("%w: %w", config.ErrValidationFailed, errs)
	}
	return nil
}

// loadConfig reads the configuration at path, or returns the defaults when
// path is empty.
func loadConfig(path string, strict bool) (*config.ServerConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	loader := infraconfig.NewLoaderWithOptions(
		infraconfig.WithValidation(true),
		infraconfig.WithStrictEnv(strict),
	)
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
