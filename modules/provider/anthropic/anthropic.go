// Package anthropic implements the provider.anthropic module: replies from
// the Anthropic Messages API through the official SDK.
package anthropic

import (
	"context"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/persona"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const backendName = "anthropic"

func init() {
	core.RegisterModule(&Anthropic{})
}

// Interface guards.
var (
	_ core.Configurable = (*Anthropic)(nil)
	_ core.Provisioner  = (*Anthropic)(nil)
	_ core.Validator    = (*Anthropic)(nil)
	_ provider.Adapter  = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config   Config
	client   *sdkanthropic.Client
	logger   zerolog.Logger
	personas persona.Resolver
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  provider.ModuleID(backendName),
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.logger = ctx.Logger

	personas, err := provider.PersonasFromApp(ctx)
	if err != nil {
		return err
	}
	a.personas = personas

	opts := []option.RequestOption{
		option.WithAPIKey(a.config.APIKey),
		option.WithRequestTimeout(a.config.Timeout),
		// A failed call is reported, never retried.
		option.WithMaxRetries(0),
	}
	if a.config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.config.BaseURL))
	}
	client := sdkanthropic.NewClient(opts...)
	a.client = &client

	ctx.RegisterService(provider.Service, a)
	a.logger.Info().Str("model", a.config.Model).Msg("anthropic provider ready")
	return nil
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	return a.config.validate()
}

// Name implements provider.Adapter.
func (a *Anthropic) Name() string { return backendName }

// GenerateReply implements provider.Adapter.
func (a *Anthropic) GenerateReply(ctx context.Context, window []conversation.Turn) (string, error) {
	req, err := provider.Prepare(backendName, a.personas, window)
	if err != nil {
		return "", err
	}

	msg, err := a.client.Messages.New(ctx, convertRequest(req, &a.config))
	if err != nil {
		return "", mapError(err)
	}

	text := replyText(msg)
	if text == "" {
		return "", provider.NoReply(backendName, "no text block (stop reason "+string(msg.StopReason)+")")
	}
	return text, nil
}
