// Package app assembles chatrelay from a configuration: the shared
// services, the configured modules and the conversation pipeline between
// them.
package app

import (
	"context"
	"fmt"

	"github.com/flemzord/chatrelay/internal/config"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/gateway"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/persona"
	"github.com/flemzord/chatrelay/internal/pipeline"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/flemzord/chatrelay/internal/sanitize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// Params configures Build.
type Params struct {
	Config *config.Config
	Logger zerolog.Logger

	// Personas overrides loading Config.PersonasFile.
	Personas persona.Set

	// Registry receives every metric. When nil, a fresh registry with the
	// Go and process collectors is used.
	Registry *prometheus.Registry
}

// App is a provisioned chatrelay instance.
type App struct {
	core     *core.App
	ctx      *core.AppContext
	pipeline *pipeline.Pipeline
	registry *prometheus.Registry
	logger   zerolog.Logger
}

// Build validates the configuration, loads the personas, provisions every
// module in load order and wires the pipeline. Nothing runs until Run.
func Build(p Params) (*App, error) {
	cfg := p.Config
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	personas := p.Personas
	if personas == nil {
		var err error
		if personas, err = persona.Load(cfg.PersonasFile); err != nil {
			return nil, err
		}
	}
	if err := personas.Require(cfg.Assistant); err != nil {
		return nil, err
	}

	table, err := sanitize.Lookup(cfg.Sanitizer)
	if err != nil {
		return nil, err
	}

	registry := p.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	appCtx := core.NewAppContext(p.Logger, cfg.DataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(gateway.MetricsService, registry)
	appCtx.RegisterService(provider.PersonaService, personas)
	appCtx.RegisterService(history.PolicyService, cfg.Window.WithDefaults())

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return nil, err
	}

	pl, err := wirePipeline(appCtx, cfg, table, registry, p.Logger)
	if err != nil {
		application.Stop()
		return nil, err
	}
	appCtx.RegisterService(pipeline.Service, pl)

	p.Logger.Info().
		Str("assistant", cfg.Assistant).
		Str("provider", pl.Provider()).
		Str("sanitizer", cfg.Sanitizer).
		Msg("pipeline wired")

	return &App{
		core:     application,
		ctx:      appCtx,
		pipeline: pl,
		registry: registry,
		logger:   p.Logger,
	}, nil
}

// wirePipeline builds the pipeline from the services the loaded modules
// published.
func wirePipeline(ctx *core.AppContext, cfg *config.Config, table sanitize.Table, reg prometheus.Registerer, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	store, err := history.FromApp(ctx)
	if err != nil {
		return nil, err
	}
	adapter, err := provider.FromApp(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := pipeline.New(pipeline.Deps{
		Store:           store,
		Adapter:         adapter,
		Persona:         cfg.Assistant,
		Sanitizer:       table,
		Policy:          cfg.Window,
		DispatchTimeout: cfg.DispatchTimeout,
		StoreTimeout:    cfg.StoreTimeout,
		Logger:          logger.With().Str("component", "pipeline").Logger(),
		Metrics:         pipeline.NewMetrics(reg),
	})
	if err != nil {
		return nil, fmt.Errorf("wiring pipeline: %w", err)
	}
	return pl, nil
}

// Run starts every module and blocks until ctx is done or the process is
// asked to terminate, then stops them in reverse order.
func (a *App) Run(ctx context.Context) error {
	return a.core.Run(ctx)
}

// Close releases the modules of an App that will not be run.
func (a *App) Close() { a.core.Stop() }

// Modules returns the loaded module IDs in load order.
func (a *App) Modules() []core.ModuleID { return a.core.ModuleIDs() }

// Pipeline returns the wired pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Registry returns the metrics registry shared by every module.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Context returns the AppContext the modules were provisioned with.
func (a *App) Context() *core.AppContext { return a.ctx }
