package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// AppContext carries shared resources available to modules during
// provisioning and at runtime.
type AppContext struct {
	// Logger for the current module scope.
	Logger zerolog.Logger

	// DataDir is the root directory for persistent module data
	// (the SQLite history file lives here by default).
	DataDir string

	parentLogger  zerolog.Logger
	moduleConfigs map[string]yaml.Node
	services      *serviceRegistry
}

type serviceRegistry struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewAppContext creates a new AppContext with the given base logger and data directory.
func NewAppContext(logger zerolog.Logger, dataDir string) *AppContext {
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		parentLogger: logger,
		services:     &serviceRegistry{items: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of the AppContext with module configurations set.
// Each key is a module ID mapping to its raw YAML configuration node.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns an AppContext scoped to the given module ID, with a
// child logger tagged with the module ID. Services are shared.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	cp := *ctx
	cp.Logger = ctx.parentLogger.With().Str("module", string(id)).Logger()
	return &cp
}

// RegisterService publishes a value other modules can discover by name.
// Registering the same name twice replaces the previous value.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	ctx.services.items[name] = svc
}

// Service returns the service registered under name.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.items[name]
	return svc, ok
}

// ServiceAs resolves a service and asserts its type.
func ServiceAs[T any](ctx *AppContext, name string) (T, error) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, fmt.Errorf("service %q not registered", name)
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("service %q has unexpected type %T", name, svc)
	}
	return typed, nil
}

// LoadModule instantiates and provisions a module by its ID:
//
//	New() → Configure() → Provision() → Validate()
//
// A Validate error is reported as a ConfigurationFailure, after the module
// has been stopped to release what Provision acquired.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, err := LookupModule(id)
	if err != nil {
		return nil, err
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		node, exists := ctx.moduleConfigs[id]
		if !exists {
			node = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		if err := c.Configure(&node); err != nil {
			return nil, Misconfigured(info.ID, fmt.Errorf("configure: %w", err))
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			var cf *ConfigurationFailure
			if errors.As(err, &cf) {
				return nil, err
			}
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			// Provision may have opened resources the caller never sees.
			if s, ok := mod.(Stopper); ok {
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				if stopErr := s.Stop(stopCtx); stopErr != nil {
					ctx.Logger.Warn().Err(stopErr).Str("module", id).Msg("releasing misconfigured module failed")
				}
				cancel()
			}
			return nil, Misconfigured(info.ID, err)
		}
	}

	return mod, nil
}
