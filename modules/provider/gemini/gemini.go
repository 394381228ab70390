// Package gemini implements the provider.gemini module: replies from the
// Google Gemini generateContent API.
package gemini

import (
	"net/http"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/persona"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const backendName = "gemini"

func init() {
	core.RegisterModule(&Provider{})
}

var (
	_ provider.Adapter  = (*Provider)(nil)
	_ core.Configurable = (*Provider)(nil)
	_ core.Provisioner  = (*Provider)(nil)
	_ core.Validator    = (*Provider)(nil)
)

// Provider is the Gemini adapter.
type Provider struct {
	config   Config
	logger   zerolog.Logger
	client   *http.Client
	personas persona.Resolver
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  provider.ModuleID(backendName),
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.logger = ctx.Logger

	personas, err := provider.PersonasFromApp(ctx)
	if err != nil {
		return err
	}
	p.personas = personas
	p.client = &http.Client{Timeout: p.config.parsedTimeout()}

	ctx.RegisterService(provider.Service, p)
	p.logger.Info().Str("model", p.config.Model).Msg("gemini provider ready")
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}

// Name implements provider.Adapter.
func (p *Provider) Name() string { return backendName }
