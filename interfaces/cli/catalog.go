package cli

import (
	"fmt"

	"github.com/felixgeelhaar/dynamic-mcp/application"
	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	infraconfig "github.com/felixgeelhaar/dynamic-mcp/infrastructure/config"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/httptool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/memory"
	"github.com/felixgeelhaar/dynamic-mcp/interfaces/rest"
)

// catalog returns the tools a server started with cfg would register,
// including the manifest's tools, without opening storage or sockets.
func catalog(cfg *config.ServerConfig) ([]*tool.Descriptor, error) {
	rt, err := application.NewRuntime()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rt.Close() }()

	factory := httptool.NewFactory()
	srv, err := rest.New(rest.Config{
		Address: restAddress(cfg.Server),
		Runtime: rt,
		Items:   memory.NewItemStore(),
		Tools:   factory,
	})
	if err != nil {
		return nil, err
	}

	tools, err := startupTools(cfg, srv, factory)
	if err != nil {
		return nil, err
	}

	if cfg.Tools.Manifest != "" {
		m, err := infraconfig.NewLoader().LoadManifest(cfg.Tools.Manifest)
		if err != nil {
			return nil, err
		}
		for _, ext := range m.Tools {
			d, err := factory.Build(ext)
			if err != nil {
				return nil, fmt.Errorf("manifest tool %q: %w", ext.Name, err)
			}
			tools = append(tools, d)
		}
	}

	// Registration resolves duplicate names the way a server would.
	if err := rt.Register(tools...); err != nil {
		return nil, err
	}
	return rt.List(), nil
}
