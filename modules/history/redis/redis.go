// Package redis provides the history.redis module: conversation history kept
// in Redis so several bot processes can share it.
package redis

import (
	"context"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/history"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ModuleID is the registry identifier of this module.
const ModuleID = "history.redis"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the Redis client and publishes the store.
type Module struct {
	config Config
	store  *Store
	logger zerolog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger

	opts, err := m.config.options()
	if err != nil {
		return core.Misconfigured(ModuleID, err)
	}
	m.store = NewStore(goredis.NewClient(opts), m.config.Prefix, nil)
	ctx.RegisterService(history.Service, m.store)

	m.logger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Str("prefix", m.config.Prefix).
		Msg("redis history provisioned")
	return nil
}

// Validate implements core.Validator. The server must be reachable at
// startup.
func (m *Module) Validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
	defer cancel()
	return m.store.Ping(ctx)
}

// Stop implements core.Stopper.
func (m *Module) Stop(context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info().Msg("redis history closing")
	return m.store.Close()
}
