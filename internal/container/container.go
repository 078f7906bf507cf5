// Package container wires the chat service from configuration using
// go.uber.org/dig.
package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	smarter "github.com/smarter-sh/smarter-sub001"
	"github.com/smarter-sh/smarter-sub001/config"
	"github.com/smarter-sh/smarter-sub001/logging"
	"github.com/smarter-sh/smarter-sub001/model"
	"github.com/smarter-sh/smarter-sub001/model/anthropic"
	"github.com/smarter-sh/smarter-sub001/model/openai"
	"github.com/smarter-sh/smarter-sub001/orchestrator"
	"github.com/smarter-sh/smarter-sub001/plugin"
	"github.com/smarter-sh/smarter-sub001/session"
	"github.com/smarter-sh/smarter-sub001/telemetry"
	"github.com/smarter-sh/smarter-sub001/tool"
	"github.com/smarter-sh/smarter-sub001/tool/builtin"
	"github.com/smarter-sh/smarter-sub001/usage"
)

// Version is reported as the tracing service version.
var Version = "dev"

// Container holds the resolved singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	service  *smarter.Service
	history  session.HistoryStore
	plugins  *plugin.Registry
	totals   *usage.InMemoryLedger
	ledger   *usage.AsyncLedger
	sink     *telemetry.AsyncSink
	registry *prometheus.Registry
	logger   logging.Logger
	shutdown tracerShutdown
}

func (c *Container) Service() *smarter.Service      { return c.service }
func (c *Container) History() session.HistoryStore  { return c.history }
func (c *Container) Plugins() *plugin.Registry      { return c.plugins }
func (c *Container) Usage() *usage.InMemoryLedger   { return c.totals }
func (c *Container) Registry() *prometheus.Registry { return c.registry }
func (c *Container) Logger() logging.Logger         { return c.logger }
func (c *Container) SinkDropped() uint64            { return c.sink.Dropped() }
func (c *Container) LedgerDropped() uint64          { return c.ledger.Dropped() }

// Options override collaborators, mostly for tests.
type Options struct {
	// Client replaces the configured vendor client.
	Client model.Client
	// Logger replaces the configured logger.
	Logger logging.Logger
}

// tracerShutdown flushes the span exporter.
type tracerShutdown func(context.Context) error

// New builds and wires all services from cfg.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*Container, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	d := dig.New()
	providers := []any{
		func() *config.Config { return cfg },
		func() context.Context { return ctx },
		func() Options { return opts },
		newLogger,
		newClient,
		newCatalog,
		newPlugins,
		newHistory,
		newRegistry,
		newMetrics,
		newTracer,
		newSink,
		newTotals,
		newLedger,
		newService,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}

	var result *Container
	err := d.Invoke(func(
		svc *smarter.Service,
		history session.HistoryStore,
		plugins *plugin.Registry,
		totals *usage.InMemoryLedger,
		ledger *usage.AsyncLedger,
		sink *telemetry.AsyncSink,
		registry *prometheus.Registry,
		logger logging.Logger,
		shutdown tracerShutdown,
	) {
		result = &Container{
			service:  svc,
			history:  history,
			plugins:  plugins,
			totals:   totals,
			ledger:   ledger,
			sink:     sink,
			registry: registry,
			logger:   logger,
			shutdown: shutdown,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

// Close drains the telemetry queues and releases databases.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if err := c.sink.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sink: %w", err))
	}
	if err := c.ledger.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ledger: %w", err))
	}
	if err := c.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer: %w", err))
	}
	if err := c.plugins.Close(); err != nil {
		errs = append(errs, fmt.Errorf("plugins: %w", err))
	}
	if closer, ok := c.history.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newLogger(cfg *config.Config, opts Options) logging.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return logging.NewLogger(cfg.LoggerConfig()).WithComponent("smarter")
}

func newClient(cfg *config.Config, opts Options) (model.Client, error) {
	if opts.Client != nil {
		return opts.Client, nil
	}
	if cfg.Provider.Name == config.ProviderAnthropic {
		client, err := anthropic.New(func(o *anthropic.Options) {
			o.Provider = cfg.Provider.Name
			o.BaseURL = cfg.Provider.BaseURL
			o.APIKey = cfg.Provider.APIKey
			o.Timeout = cfg.Provider.Timeout
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := openai.New(func(o *openai.Options) {
		o.Provider = cfg.Provider.Name
		o.BaseURL = cfg.Provider.BaseURL
		o.APIKey = cfg.Provider.APIKey
		o.Timeout = cfg.Provider.Timeout
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newCatalog(cfg *config.Config) (*tool.Catalog, error) {
	weather := cfg.Functions.Weather
	return builtin.Catalog(func(o *builtin.Options) {
		o.Weather = append(o.Weather, func(wo *builtin.WeatherOptions) {
			if weather.GeocodeURL != "" {
				wo.GeocodeURL = weather.GeocodeURL
			}
			if weather.ForecastURL != "" {
				wo.ForecastURL = weather.ForecastURL
			}
		})
	})
}

func newPlugins(cfg *config.Config) (*plugin.Registry, error) {
	return plugin.Load(cfg.Plugins)
}

func newHistory(ctx context.Context, cfg *config.Config) (session.HistoryStore, error) {
	if cfg.Storage.Driver == "" {
		return session.NewInMemoryStore(), nil
	}
	store, err := session.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN, func(o *session.SQLOptions) {
		if cfg.Storage.Table != "" {
			o.Table = cfg.Storage.Table
		}
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newRegistry() *prometheus.Registry { return prometheus.NewRegistry() }

func newMetrics(reg *prometheus.Registry) *telemetry.Metrics { return telemetry.NewMetrics(reg) }

func newTracer(cfg *config.Config) (*telemetry.Tracer, tracerShutdown) {
	tr, shutdown := telemetry.NewTracer(telemetry.TraceConfig{
		ServiceName:    "smarter",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		Insecure:       cfg.Telemetry.Insecure,
	})
	return tr, shutdown
}

func newSink(cfg *config.Config, logger logging.Logger, m *telemetry.Metrics) *telemetry.AsyncSink {
	return telemetry.NewAsyncSink(telemetry.NewLogSink(logger), func(o *telemetry.AsyncOptions) {
		o.BufferSize = cfg.Telemetry.BufferSize
		o.Logger = logger
		o.Metrics = m
	})
}

func newTotals() *usage.InMemoryLedger { return usage.NewInMemoryLedger() }

func newLedger(cfg *config.Config, logger logging.Logger, m *telemetry.Metrics, totals *usage.InMemoryLedger) *usage.AsyncLedger {
	return usage.NewAsyncLedger(totals, func(o *usage.AsyncOptions) {
		o.BufferSize = cfg.Telemetry.BufferSize
		o.Logger = logger
		o.OnDrop = func(usage.Record) { m.EventDropped("usage") }
	})
}

type serviceParams struct {
	dig.In

	Config  *config.Config
	Client  model.Client
	Catalog *tool.Catalog
	Plugins *plugin.Registry
	History session.HistoryStore
	Ledger  *usage.AsyncLedger
	Sink    *telemetry.AsyncSink
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer
	Logger  logging.Logger
}

func newService(p serviceParams) (*smarter.Service, error) {
	return smarter.New(func(o *smarter.Options) {
		o.Client = p.Client
		o.Catalog = p.Catalog
		o.Plugins = p.Plugins
		o.History = p.History
		o.PersistHistory = true
		o.Ledger = p.Ledger
		o.Sink = p.Sink
		o.Metrics = p.Metrics
		o.Tracer = p.Tracer
		o.Logger = p.Logger
		o.Defaults = orchestrator.Defaults{
			Model:       p.Config.Defaults.Model,
			Temperature: p.Config.Defaults.Temperature,
			MaxTokens:   p.Config.Defaults.MaxTokens,
		}
		o.AllowedModels = p.Config.AllowedModels
		o.SystemPrompt = p.Config.SystemPrompt
	})
}
