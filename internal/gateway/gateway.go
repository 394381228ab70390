// Package gateway provides the gateway.http module: an HTTP server for
// health, metrics, operator endpoints and inbound webhooks. It binds to
// loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/flemzord/chatrelay/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ModuleID is the registry identifier of this module.
const ModuleID = "gateway.http"

var errNoStore = errors.New("gateway: no history store registered")

func init() {
	core.RegisterModule(&Gateway{})
}

var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Conversations is the view of the running pipeline the gateway reports on.
// *pipeline.Pipeline satisfies it.
type Conversations interface {
	Provider() string
	Persona() string
	Policy() history.Policy
	Window(ctx context.Context, chatID int64) ([]conversation.Turn, error)
}

var _ Conversations = (*pipeline.Pipeline)(nil)

// Gateway is the HTTP gateway module. Nothing imports it; other modules
// reach it through the WebhookService service.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     zerolog.Logger
	server     *http.Server
	listener   net.Listener
	registry   *prometheus.Registry
	metrics    *httpMetrics
	dispatcher *WebhookDispatcher
	startedAt  time.Time

	// Resolved lazily at Start() via the service registry.
	store         history.Store
	conversations Conversations
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger

	g.registry = prometheus.NewRegistry()
	if reg, err := core.ServiceAs[*prometheus.Registry](ctx, MetricsService); err == nil {
		g.registry = reg
	}
	g.metrics = newHTTPMetrics(g.registry)

	g.dispatcher = NewWebhookDispatcher(g.logger, g.config.webhookSecrets())
	ctx.RegisterService(WebhookService, g.dispatcher)

	for source := range g.config.webhookSecrets() {
		g.logger.Info().Str("source", source).Msg("webhook source configured")
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}
	if g.config.Auth.BasicUser != "" && g.config.Auth.BasicPass == "" {
		return errors.New("gateway: auth.basic_pass is required with auth.basic_user")
	}
	return nil
}

// Start implements core.Starter. It resolves the store and the pipeline
// from the service registry and starts the HTTP server.
func (g *Gateway) Start() error {
	if store, err := history.FromApp(g.appCtx); err == nil {
		g.store = store
	} else {
		g.logger.Warn().Err(err).Msg("gateway running without a history store")
	}
	if conv, err := core.ServiceAs[*pipeline.Pipeline](g.appCtx, pipeline.Service); err == nil {
		g.conversations = conv
	}

	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen: %w", err)
	}
	g.listener = ln

	go func() {
		g.logger.Info().Str("addr", ln.Addr().String()).Msg("gateway listening")
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error().Err(err).Msg("gateway serve error")
		}
	}()

	return nil
}

// Stop implements core.Stopper. In-flight requests get ShutdownTimeout to
// finish.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info().Msg("gateway shutting down")
	err := g.server.Shutdown(shutdownCtx)
	g.server = nil
	return err
}

// Addr returns the address the server listens on, empty before Start.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Dispatcher returns the webhook dispatcher.
func (g *Gateway) Dispatcher() *WebhookDispatcher { return g.dispatcher }
