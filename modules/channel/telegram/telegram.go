package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/dispatch"
	"github.com/flemzord/chatrelay/internal/gateway"
	"github.com/flemzord/chatrelay/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ModuleID is the registry identifier of the Telegram transport.
const ModuleID = "channel.telegram"

// WebhookSource is the gateway route the transport listens on:
// POST /webhooks/telegram.
const WebhookSource = "telegram"

const startupTimeout = 15 * time.Second

// Update outcomes counted by chatrelay_telegram_updates_total.
const (
	outcomeQueued  = "queued"
	outcomeIgnored = "ignored"
	outcomeDenied  = "denied"
	outcomeDropped = "dropped"
)

func init() {
	core.RegisterModule(&Telegram{})
}

var (
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram relays Telegram chats to the conversation pipeline.
type Telegram struct {
	config  Config
	client  *Client
	logger  zerolog.Logger
	appCtx  *core.AppContext
	queue   *dispatch.Queue[int64]
	updates *prometheus.CounterVec

	handler  *handler
	botUser  *User
	poller   *Poller
	receiver *WebhookReceiver
	webhooks *gateway.WebhookDispatcher
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  ModuleID,
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL)

	queue, err := core.ServiceAs[*dispatch.Queue[int64]](ctx, dispatch.Service)
	if err != nil {
		return fmt.Errorf("telegram: %w (is the dispatch module loaded?)", err)
	}
	t.queue = queue

	if reg, err := core.ServiceAs[*prometheus.Registry](ctx, gateway.MetricsService); err == nil {
		t.updates = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatrelay_telegram_updates_total",
			Help: "Telegram updates received, by outcome.",
		}, []string{"outcome"})
		if err := reg.Register(t.updates); err != nil {
			return fmt.Errorf("telegram: register metrics: %w", err)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if err := t.config.validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Start implements core.Starter. It resolves the pipeline, checks the token
// with getMe, then starts polling or registers the webhook.
func (t *Telegram) Start() error {
	responder, err := core.ServiceAs[Responder](t.appCtx, pipeline.Service)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	user, err := t.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.handler = &handler{
		client:      t.client,
		responder:   responder,
		config:      t.config,
		logger:      t.logger,
		botUsername: user.Username,
	}
	t.logger.Info().Int64("id", user.ID).Str("username", user.Username).Msg("telegram bot authenticated")

	switch t.config.Mode {
	case ModePolling:
		// A leftover webhook makes getUpdates fail with 409.
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn().Err(err).Msg("deleteWebhook before polling failed")
		}
		t.poller = NewPoller(t.client, t.enqueue, t.logger, t.config)
		t.poller.Start()
		t.logger.Info().Int("timeout", t.config.PollingTimeout).Msg("telegram polling started")

	case ModeWebhook:
		webhooks, err := core.ServiceAs[*gateway.WebhookDispatcher](t.appCtx, gateway.WebhookService)
		if err != nil {
			return errors.Join(errors.New("telegram: webhook mode requires the gateway.http module"), err)
		}
		if t.config.WebhookSecret == "" {
			t.logger.Warn().Msg("telegram webhook running without webhook_secret")
		}
		t.receiver = NewWebhookReceiver(t.enqueue, t.logger, t.config.WebhookSecret)
		webhooks.Register(WebhookSource, t.receiver, "")
		t.webhooks = webhooks

		if err := t.client.SetWebhook(ctx, SetWebhookRequest{
			URL:            t.config.WebhookURL,
			SecretToken:    t.config.WebhookSecret,
			AllowedUpdates: t.config.AllowedUpdates,
		}); err != nil {
			webhooks.Unregister(WebhookSource)
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info().Str("url", t.config.WebhookURL).Msg("telegram webhook configured")
	}
	return nil
}

// Stop implements core.Stopper. Updates already queued are drained by the
// dispatch module, which stops after this one.
func (t *Telegram) Stop(ctx context.Context) error {
	if t.poller != nil {
		t.poller.Stop()
		t.poller = nil
	}
	if t.webhooks != nil {
		t.webhooks.Unregister(WebhookSource)
		t.webhooks = nil
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn().Err(err).Msg("deleteWebhook on shutdown failed")
		}
	}
	return nil
}

// enqueue filters an update and queues its message on the chat's lane.
func (t *Telegram) enqueue(u *Update) error {
	msg := u.Message
	if msg == nil || msg.Text == "" {
		t.count(outcomeIgnored)
		t.logger.Debug().Int("update_id", u.UpdateID).Msg("skipping non-text update")
		return nil
	}
	if !t.config.allows(msg.Chat.ID) {
		t.count(outcomeDenied)
		t.logger.Debug().Int64("chat_id", msg.Chat.ID).Msg("chat denied by allow list")
		return nil
	}
	if err := t.queue.Submit(msg.Chat.ID, func(ctx context.Context) {
		t.handler.handle(ctx, msg)
	}); err != nil {
		t.count(outcomeDropped)
		return fmt.Errorf("telegram: queue update %d: %w", u.UpdateID, err)
	}
	t.count(outcomeQueued)
	return nil
}

func (t *Telegram) count(outcome string) {
	if t.updates != nil {
		t.updates.WithLabelValues(outcome).Inc()
	}
}

// BotUser returns the authenticated bot, once started.
func (t *Telegram) BotUser() *User { return t.botUser }
