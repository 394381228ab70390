// Package sqlite provides the history.sqlite module: conversation history
// persisted in a local SQLite file (modernc.org/sqlite, no CGO) whose schema
// is managed by goose migrations.
package sqlite

import (
	"context"
	"path/filepath"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ModuleID is the registry identifier of this module.
const ModuleID = "history.sqlite"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the SQLite history store and publishes it as the
// history.Service service.
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
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.config.Path == "" {
		m.config.Path = filepath.Join(ctx.DataDir, defaultDBFile)
	}

	store, err := Open(context.Background(), m.config, nil)
	if err != nil {
		return err
	}
	m.store = store
	ctx.RegisterService(history.Service, store)

	m.logger.Info().
		Str("path", m.config.Path).
		Bool("wal", m.config.walEnabled()).
		Int64("schema_version", store.SchemaVersion()).
		Msg("sqlite history provisioned")
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := m.config.validate(); err != nil {
		return err
	}
	return m.store.Ping(context.Background())
}

// Stop implements core.Stopper.
func (m *Module) Stop(context.Context) error {
	if m.store == nil {
		return nil
	}
	m.logger.Info().Msg("sqlite history closing")
	return m.store.Close()
}

// Store returns the provisioned store.
func (m *Module) Store() *Store { return m.store }
