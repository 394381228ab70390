// Package telemetry provides the telemetry module, which installs the
// process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
)

// ModuleID is the registry identifier of this module.
const ModuleID = "telemetry"

func init() {
	core.RegisterModule(&Module{})
}

var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
)

// Module owns the SDK tracer provider. It must be loaded before any module
// that creates spans.
type Module struct {
	config   Config
	provider *sdktrace.TracerProvider
	logger   zerolog.Logger
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

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return core.Misconfigured(ModuleID, err)
	}

	tp, err := NewTracerProvider(context.Background(), m.config)
	if err != nil {
		return err
	}
	m.provider = tp
	otel.SetTracerProvider(tp)

	m.logger.Info().
		Str("endpoint", m.config.Endpoint).
		Float64("sample_ratio", *m.config.SampleRatio).
		Bool("exporting", m.config.Endpoint != "").
		Msg("tracer provider installed")
	return nil
}

// Stop implements core.Stopper. Pending spans are flushed before returning.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	tp := m.provider
	m.provider = nil
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}

// TracerProvider returns the installed provider, nil after Stop.
func (m *Module) TracerProvider() *sdktrace.TracerProvider { return m.provider }

// NewTracerProvider builds a tracer provider for cfg. Spans are batched to
// an OTLP/HTTP exporter when cfg.Endpoint is set.
func NewTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	cfg.defaults()

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(*cfg.SampleRatio))),
	}

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if len(cfg.Headers) > 0 {
			exporterOpts = append(exporterOpts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}
