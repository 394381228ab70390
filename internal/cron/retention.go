package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/gateway"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// RetentionModuleID is the registry identifier of the retention module.
const RetentionModuleID = "retention"

func init() {
	core.RegisterModule(&RetentionModule{})
}

var (
	_ core.Configurable = (*RetentionModule)(nil)
	_ core.Provisioner  = (*RetentionModule)(nil)
	_ core.Validator    = (*RetentionModule)(nil)
	_ core.Starter      = (*RetentionModule)(nil)
	_ core.Stopper      = (*RetentionModule)(nil)
)

// RetentionConfig configures the retention module.
type RetentionConfig struct {
	Schedule string        `yaml:"schedule"`
	MaxAge   time.Duration `yaml:"max_age"`

	// RunOnStart sweeps once in the background when the module starts.
	RunOnStart bool `yaml:"run_on_start"`
}

// RetentionModule periodically sweeps expired turns from the history store.
type RetentionModule struct {
	config    RetentionConfig
	appCtx    *core.AppContext
	logger    zerolog.Logger
	scheduler *Scheduler
	job       *RetentionJob
	swept     prometheus.Counter

	// window is the age the pipeline reads history back over; zero when no
	// policy is published.
	window time.Duration
}

// ModuleInfo implements core.Module.
func (m *RetentionModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  RetentionModuleID,
		New: func() core.Module { return &RetentionModule{} },
	}
}

// Configure implements core.Configurable.
func (m *RetentionModule) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	if m.config.Schedule == "" {
		m.config.Schedule = DefaultRetentionSchedule
	}
	if m.config.MaxAge == 0 {
		m.config.MaxAge = DefaultRetentionAge
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *RetentionModule) Provision(ctx *core.AppContext) error {
	m.appCtx = ctx
	m.logger = ctx.Logger
	m.scheduler = NewScheduler(m.logger)
	if policy, err := core.ServiceAs[history.Policy](ctx, history.PolicyService); err == nil {
		m.window = policy.MaxAge
	}

	if reg, err := core.ServiceAs[*prometheus.Registry](ctx, gateway.MetricsService); err == nil {
		m.swept = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_swept_turns_total",
			Help: "Turns deleted by the retention job.",
		})
		if err := reg.Register(m.swept); err != nil {
			return fmt.Errorf("retention: register metrics: %w", err)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (m *RetentionModule) Validate() error {
	if m.config.MaxAge < 0 {
		return fmt.Errorf("retention: max_age must be positive, got %s", m.config.MaxAge)
	}
	if m.window > 0 && m.config.MaxAge < m.window {
		return fmt.Errorf("retention: max_age (%s) must be at least window.max_age (%s)", m.config.MaxAge, m.window)
	}
	return ParseSchedule(m.config.Schedule)
}

// Start implements core.Starter. The history store is resolved here so the
// module does not depend on load order.
func (m *RetentionModule) Start() error {
	store, err := history.FromApp(m.appCtx)
	if err != nil {
		return errors.Join(errors.New("retention: a history module is required"), err)
	}

	m.job = &RetentionJob{
		Store:        store,
		MaxAge:       m.config.MaxAge,
		ScheduleExpr: m.config.Schedule,
		Logger:       m.logger,
		OnSwept: func(n int) {
			if m.swept != nil {
				m.swept.Add(float64(n))
			}
		},
	}
	if err := m.scheduler.RegisterJob(m.job); err != nil {
		return err
	}
	if err := m.scheduler.Start(); err != nil {
		return err
	}

	m.logger.Info().
		Str("schedule", m.config.Schedule).
		Dur("max_age", m.config.MaxAge).
		Msg("retention scheduled")

	if m.config.RunOnStart {
		go m.scheduler.Trigger(m.job.Name())
	}
	return nil
}

// Stop implements core.Stopper.
func (m *RetentionModule) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Scheduler returns the module's scheduler.
func (m *RetentionModule) Scheduler() *Scheduler { return m.scheduler }
