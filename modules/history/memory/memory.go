// Package memory provides the history.memory module: a process-local
// history store for development and tests. Everything is lost on restart.
package memory

import (
	"context"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/history"
)

// ModuleID is the registry identifier of this module.
const ModuleID = "history.memory"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Provisioner = (*Module)(nil)
	_ core.Stopper     = (*Module)(nil)
)

// Module publishes a history.MemoryStore.
type Module struct {
	store *history.MemoryStore
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Module{} },
	}
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.store = history.NewMemoryStore(nil)
	ctx.RegisterService(history.Service, m.store)
	ctx.Logger.Warn().Msg("in-memory history: turns are lost on restart")
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
