package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// SecretHeader carries the webhook secret Telegram echoes on every delivery.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

var errBadSecret = errors.New("telegram: invalid webhook secret token")

// WebhookReceiver accepts updates pushed through the gateway. It implements
// gateway.WebhookHandler.
type WebhookReceiver struct {
	submit func(*Update) error
	logger zerolog.Logger
	secret string
}

// NewWebhookReceiver creates a WebhookReceiver. An empty secret disables
// the header check.
func NewWebhookReceiver(submit func(*Update) error, logger zerolog.Logger, secret string) *WebhookReceiver {
	return &WebhookReceiver{submit: submit, logger: logger, secret: secret}
}

// HandleWebhook checks the secret header, decodes the update and queues it.
// It returns as soon as the update is queued.
func (w *WebhookReceiver) HandleWebhook(_ context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			w.logger.Warn().Msg("webhook rejected: bad secret token")
			return errBadSecret
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("telegram: invalid update JSON: %w", err)
	}
	return w.submit(&update)
}
