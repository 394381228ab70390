package dispatch

import (
	"context"
	"fmt"

	"github.com/flemzord/chatrelay/internal/core"
	"gopkg.in/yaml.v3"
)

// ModuleID is the ID of the module owning the shared chat queue.
const ModuleID core.ModuleID = "dispatch"

// Service is the name under which the shared *Queue[int64], keyed by chat
// ID, is published.
const Service = "dispatch.queue"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Module       = (*Module)(nil)
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// ModuleConfig configures the shared queue.
type ModuleConfig struct {
	Workers int `yaml:"workers"`
}

// Module publishes one Queue that every transport submits inbound updates
// to. It is loaded before the transports, so it stops after them and drains
// what they queued while the stores are still open.
type Module struct {
	config ModuleConfig
	queue  *Queue[int64]
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
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	if m.config.Workers == 0 {
		m.config.Workers = DefaultWorkers
	}
	m.queue = NewQueue[int64](m.config.Workers, ctx.Logger)
	ctx.RegisterService(Service, m.queue)
	ctx.Logger.Debug().Int("workers", m.config.Workers).Msg("dispatch queue ready")
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.config.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", m.config.Workers)
	}
	return nil
}

// Stop drains the queue.
func (m *Module) Stop(ctx context.Context) error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Shutdown(ctx)
}

// Queue returns the provisioned queue.
func (m *Module) Queue() *Queue[int64] { return m.queue }
