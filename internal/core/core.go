package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const shutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of modules.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  zerolog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
	stopped bool
}

// NewApp creates a new App with the given context.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With().Str("component", "core").Logger(),
	}
}

// Context returns the AppContext the modules were provisioned with.
func (a *App) Context() *AppContext { return a.ctx }

// LoadModules instantiates, provisions and validates the given module IDs in
// order. On failure, already-loaded modules are stopped.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.cleanup()
			return err
		}
		info := mod.ModuleInfo()
		a.modules = append(a.modules, moduleInstance{id: info.ID, module: mod})
		a.logger.Info().Str("module", string(info.ID)).Msg("module loaded")
	}
	return nil
}

// Module returns the loaded module with the given ID.
func (a *App) Module(id string) (Module, bool) {
	for _, mi := range a.modules {
		if string(mi.id) == id {
			return mi.module, true
		}
	}
	return nil, false
}

// ModuleIDs returns the IDs of the loaded modules in load order.
func (a *App) ModuleIDs() []ModuleID {
	ids := make([]ModuleID, len(a.modules))
	for i, mi := range a.modules {
		ids[i] = mi.id
	}
	return ids
}

// Start starts every loaded Starter in order. If one fails, the modules
// already started are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		a.logger.Info().Str("module", string(mi.id)).Msg("starting module")
		if err := s.Start(); err != nil {
			a.logger.Error().Err(err).Str("module", string(mi.id)).Msg("module start failed")
			a.stopModules(i - 1)
			a.cleanup()
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info().Int("modules", len(a.modules)).Msg("all modules started")
	return nil
}

// Stop stops all started modules in reverse order with a timeout, then
// releases the resources of modules that were loaded but never started.
func (a *App) Stop() {
	a.stopModules(len(a.modules) - 1)
	a.cleanup()
}

func (a *App) stopModules(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			a.logger.Info().Str("module", string(mi.id)).Msg("stopping module")
			if err := s.Stop(ctx); err != nil {
				a.logger.Error().Err(err).Str("module", string(mi.id)).Msg("module stop error")
			}
		}
		mi.started = false
		mi.stopped = true
	}
}

// cleanup stops modules that hold resources from Provision (database
// handles, tracer providers) without having been started.
func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		mi := &a.modules[i]
		if mi.started || mi.stopped {
			continue
		}
		if s, ok := mi.module.(Stopper); ok {
			_ = s.Stop(ctx)
		}
		mi.stopped = true
	}
	a.modules = nil
}

// Run starts all modules and blocks until ctx is done or SIGINT/SIGTERM
// is received, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
		a.logger.Info().Msg("shutdown requested")
	}

	a.Stop()
	a.logger.Info().Msg("shutdown complete")
	return nil
}
