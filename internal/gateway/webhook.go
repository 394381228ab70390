package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// WebhookService is the service name of the gateway's *WebhookDispatcher.
const WebhookService = "gateway.webhooks"

const maxWebhookBody = 1 << 20

// WebhookHandler processes a validated webhook payload. Handlers should
// return quickly; slow work belongs on a queue.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookHandlerFunc adapts a function to WebhookHandler.
type WebhookHandlerFunc func(ctx context.Context, source string, body []byte, headers http.Header) error

// HandleWebhook implements WebhookHandler.
func (f WebhookHandlerFunc) HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error {
	return f(ctx, source, body, headers)
}

type webhookEntry struct {
	handler WebhookHandler
	secret  string
}

// WebhookDispatcher routes incoming webhooks to registered handlers with
// optional HMAC validation.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]webhookEntry
	secrets  map[string]string
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher. secrets maps a source to the
// HMAC secret configured for it in the gateway.
func NewWebhookDispatcher(logger zerolog.Logger, secrets map[string]string) *WebhookDispatcher {
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &WebhookDispatcher{
		handlers: make(map[string]webhookEntry),
		secrets:  secrets,
		logger:   logger,
	}
}

// Register adds a handler for source. An empty secret falls back to the one
// configured for source, if any.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if secret == "" {
		secret = d.secrets[source]
	}
	d.handlers[source] = webhookEntry{handler: h, secret: secret}
}

// Unregister removes the handler for source.
func (d *WebhookDispatcher) Unregister(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, source)
}

// Sources returns the registered sources in sorted order.
func (d *WebhookDispatcher) Sources() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sources := make([]string, 0, len(d.handlers))
	for source := range d.handlers {
		sources = append(sources, source)
	}
	slices.Sort(sources)
	return sources
}

// ServeHTTP extracts the source from the chi URL param, validates the HMAC
// signature if configured and dispatches to the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	entry, ok := d.handlers[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn().Str("source", source).Msg("webhook received for unregistered source")
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "warning": "no handler registered"})
		return
	}

	if entry.secret != "" && !validateHMAC(body, r.Header.Get("X-Signature-256"), entry.secret) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	if err := entry.handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		d.logger.Error().Err(err).Str("source", source).Msg("webhook handler failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Sign returns the X-Signature-256 value for body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validateHMAC(body []byte, signature, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(Sign(body, secret)), []byte(signature)) == 1
}
