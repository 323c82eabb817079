package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	dynamicmcp "github.com/felixgeelhaar/dynamic-mcp"
	"github.com/felixgeelhaar/dynamic-mcp/application"
	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
	domainnotification "github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	infraconfig "github.com/felixgeelhaar/dynamic-mcp/infrastructure/config"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/httptool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/mcp"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/notification"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/observability"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/badger"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/memory"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/mongodb"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/redis"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/telemetry"
	"github.com/felixgeelhaar/dynamic-mcp/interfaces/rest"
	"github.com/felixgeelhaar/dynamic-mcp/pack/demo"
)

const serviceName = "dynamic-mcp"

// stack holds every running component of a server process.
type stack struct {
	config *config.ServerConfig

	provider *observability.Provider
	runtime  *application.Runtime
	items    item.Store
	factory  *httptool.Factory
	rest     *rest.Server
	bridge   *mcp.Bridge
	webhooks *notification.WebhookListener
	manifest *infraconfig.ManifestWatcher
}

// buildStack wires the components described by cfg and registers the
// startup tool set. Nothing listens on a socket yet.
func buildStack(ctx context.Context, cfg *config.ServerConfig) (_ *stack, err error) {
	s := &stack{config: cfg}
	defer func() {
		if err != nil {
			_ = s.close(context.Background())
		}
	}()

	s.provider, err = newProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	executor := resilience.NewExecutorWithOptions(
		resilience.WithTimeout(cfg.Invocation.Timeout.Duration()),
		resilience.WithMaxConcurrent(cfg.Invocation.MaxConcurrent),
		resilience.WithMaxQueue(cfg.Invocation.MaxQueue),
	)
	metricsConfig := telemetry.DefaultMetricsConfig()
	metricsConfig.MeterProvider = s.provider.MeterProvider()

	s.runtime, err = application.NewRuntime(
		application.WithExecutor(executor),
		application.WithTracer(s.provider.Tracer(serviceName)),
		application.WithMetrics(telemetry.NewMetricsProvider(metricsConfig)),
		application.WithBroadcasterConfig(notification.BroadcasterConfig{
			QueueSize:       cfg.Notification.QueueSize,
			DeliveryTimeout: cfg.Notification.DeliveryTimeout.Duration(),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	s.items, err = openItemStore(ctx, cfg.Storage.Items)
	if err != nil {
		return nil, fmt.Errorf("item store: %w", err)
	}
	if cfg.Storage.Items.Seed {
		if err := item.SeedIfEmpty(ctx, s.items); err != nil {
			return nil, fmt.Errorf("seed items: %w", err)
		}
	}

	s.factory = httptool.NewFactory(func(o *httptool.Options) {
		o.Timeout = cfg.Invocation.Timeout.Duration()
	})

	s.rest, err = rest.New(rest.Config{
		Address: restAddress(cfg.Server),
		Runtime: s.runtime,
		Items:   s.items,
		Tools:   s.factory,
		Metrics: s.provider.MetricsHandler(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.registerStartupTools(); err != nil {
		return nil, err
	}

	if cfg.Tools.Manifest != "" {
		loader := infraconfig.NewLoader()
		syncer := infraconfig.NewManifestSync(s.runtime, s.factory.Build, infraconfig.WithForget(s.factory.Forget))
		s.manifest = infraconfig.NewManifestWatcher(cfg.Tools.Manifest, loader, syncer)
		if err := s.manifest.Reload(); err != nil {
			return nil, err
		}
	}

	if endpoints := webhookEndpoints(cfg.Notification.Endpoints); len(endpoints) > 0 {
		webhookConfig := notification.DefaultWebhookConfig()
		webhookConfig.Endpoints = endpoints
		webhookConfig.SenderConfig.Timeout = cfg.Notification.DeliveryTimeout.Duration()
		if b := cfg.Notification.Batching; b.Enabled {
			webhookConfig.EnableBatching = true
			if b.MaxSize > 0 {
				webhookConfig.BatcherConfig.MaxBatchSize = b.MaxSize
			}
			if b.MaxWait > 0 {
				webhookConfig.BatcherConfig.MaxWait = b.MaxWait.Duration()
			}
		}
		s.webhooks = notification.NewWebhookListener(webhookConfig)
		s.runtime.Attach(s.webhooks)
	}

	s.bridge, err = mcp.NewBridge(mcp.Config{
		Name:         cfg.Server.Name,
		Version:      dynamicmcp.Version,
		Description:  "Runtime tool registry served over MCP",
		Instructions: cfg.Server.Instructions,
		Tools:        s.runtime.List,
		Call: func(ctx context.Context, name string, raw json.RawMessage) (any, error) {
			res, err := s.runtime.InvokeJSON(ctx, name, raw)
			if err != nil {
				return nil, err
			}
			return res.Value, nil
		},
	})
	if err != nil {
		return nil, err
	}
	s.runtime.Attach(s.bridge)

	return s, nil
}

// registerStartupTools registers the demo pack, the exposed REST routes and
// the configured external tools.
func (s *stack) registerStartupTools() error {
	tools, err := startupTools(s.config, s.rest, s.factory)
	if err != nil {
		return err
	}
	if err := s.runtime.Register(tools...); err != nil {
		return fmt.Errorf("register startup tools: %w", err)
	}
	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Int("tools", len(tools))).
		Add(logging.Revision(s.runtime.Revision())).
		Msg("startup tools registered")
	return nil
}

// startupTools returns the tool set a server starts with.
func startupTools(cfg *config.ServerConfig, srv *rest.Server, factory *httptool.Factory) ([]*tool.Descriptor, error) {
	p, err := demo.New(func(o *demo.Options) {
		o.BaseURL = "http://" + restAddress(cfg.Server)
		o.Configured = cfg.Tools.Demo
	})
	if err != nil {
		return nil, err
	}
	tools := append([]*tool.Descriptor(nil), p.Tools...)

	if cfg.Tools.ExposeRoutes {
		exposed, err := srv.ExposedTools()
		if err != nil {
			return nil, err
		}
		tools = append(tools, exposed...)
	}

	for _, ext := range cfg.Tools.External {
		d, err := factory.Build(ext)
		if err != nil {
			return nil, fmt.Errorf("external tool %q: %w", ext.Name, err)
		}
		tools = append(tools, d)
	}
	return tools, nil
}

// run serves the configured transports until ctx is cancelled.
func (s *stack) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	running := 0
	start := func(name string, fn func() error) {
		running++
		go func() {
			err := fn()
			if err != nil && !errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%s: %w", name, err)
			} else {
				err = nil
			}
			errCh <- err
		}()
	}

	if s.manifest != nil && s.config.Tools.Watch {
		start("manifest watcher", func() error { return s.manifest.Run(ctx) })
	}

	switch s.config.Server.Mode {
	case config.ModeStdio:
		start("mcp stdio", func() error { return s.bridge.ServeStdio(ctx) })
	default:
		start("rest", s.rest.Start)
		start("mcp http", func() error { return s.bridge.ServeHTTP(ctx, s.config.Server.MCPAddr) })
		logging.Info().
			Add(logging.Component("cli")).
			Add(logging.Str("rest_addr", restAddress(s.config.Server))).
			Add(logging.Str("mcp_addr", s.config.Server.MCPAddr)).
			Msg("serving")
	}

	var firstErr error
	select {
	case <-ctx.Done():
	case firstErr = <-errCh:
		running--
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if s.config.Server.Mode != config.ModeStdio {
		_ = s.rest.Shutdown(shutdownCtx)
	}

	for ; running > 0; running-- {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// close releases every component in reverse construction order.
func (s *stack) close(ctx context.Context) error {
	var errs []error
	if s.webhooks != nil {
		errs = append(errs, s.webhooks.Close())
	}
	if s.runtime != nil {
		errs = append(errs, s.runtime.Close())
	}
	if s.items != nil {
		errs = append(errs, s.items.Close())
	}
	if s.provider != nil {
		errs = append(errs, s.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newProvider(cfg *config.ServerConfig) (*observability.Provider, error) {
	opts := []observability.Option{
		observability.WithService(serviceName, dynamicmcp.Version),
		observability.WithEnvironment(cfg.Server.Environment),
	}
	if t := cfg.Tracing; t.Enabled {
		opts = append(opts, observability.WithTraces(telemetrySignal(t)))
		if t.SampleRate > 0 {
			opts = append(opts, observability.WithSampleRate(t.SampleRate))
		}
	}
	if m := cfg.Metrics; m.Enabled {
		opts = append(opts, observability.WithMetrics(telemetrySignal(m)))
	}
	return observability.New(opts...)
}

func telemetrySignal(t config.TelemetryConfig) observability.Signal {
	return observability.Signal{
		Exporter: observability.ExporterType(t.Exporter),
		Endpoint: t.Endpoint,
		Insecure: t.Insecure,
	}
}

func openItemStore(ctx context.Context, cfg config.ItemStoreConfig) (item.Store, error) {
	switch cfg.Driver {
	case config.DriverBadger:
		store, err := badger.NewItemStore(badger.DefaultConfig(), badgerOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		dsn := "file::memory:?cache=shared"
		if cfg.Path != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
				return nil, err
			}
			dsn = "file:" + cfg.Path + "?cache=shared&mode=rwc"
		}
		store, err := sqlite.NewItemStore(sqlite.DefaultConfig(), sqliteOptions(cfg, dsn)...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.NewItemStore(ctx, postgres.DefaultConfig(), postgres.WithURL(cfg.URL))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverRedis:
		store, err := redis.NewItemStore(ctx, redis.DefaultConfig(), redis.WithURL(cfg.URL))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMongo:
		store, err := mongodb.NewItemStore(ctx, mongodb.DefaultConfig(), mongodb.WithURI(cfg.URL))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return memory.NewItemStore(), nil
	}
}

func badgerOptions(cfg config.ItemStoreConfig) []badger.Option {
	opts := []badger.Option{badger.WithInMemory()}
	if cfg.Path != "" {
		opts = []badger.Option{badger.WithDir(cfg.Path)}
	}
	if cfg.SyncWrites {
		opts = append(opts, badger.WithSyncWrites())
	}
	if cfg.GCInterval > 0 {
		opts = append(opts, badger.WithGCInterval(cfg.GCInterval.Duration()))
	}
	return opts
}

func sqliteOptions(cfg config.ItemStoreConfig, dsn string) []sqlite.Option {
	opts := []sqlite.Option{sqlite.WithDSN(dsn)}
	if cfg.JournalMode != "" {
		opts = append(opts, sqlite.WithJournalMode(strings.ToUpper(cfg.JournalMode)))
	}
	return opts
}

func webhookEndpoints(cfgs []config.EndpointConfig) []*domainnotification.Endpoint {
	var endpoints []*domainnotification.Endpoint
	for _, c := range cfgs {
		if !c.Enabled {
			continue
		}
		ep := &domainnotification.Endpoint{
			Name:    c.Name,
			URL:     c.URL,
			Secret:  c.Secret,
			Headers: c.Headers,
			Enabled: true,
		}
		if len(c.Tools) > 0 {
			ep.Filter = domainnotification.FilterByTool(c.Tools...)
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints
}

func restAddress(s config.ServerSettings) string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
