package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/dispatch"
	"github.com/flemzord/chatrelay/internal/gateway"
	"github.com/flemzord/chatrelay/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type moduleFixture struct {
	module *Telegram
	app    *core.AppContext
	queue  *dispatch.Queue[int64]
}

func newModule(t *testing.T, bot *fakeBot, src string, responder Responder) *moduleFixture {
	t.Helper()

	var doc yaml.Node
	full := fmt.Sprintf("token: %q\napi_url: %q\n%s", testToken, bot.srv.URL, src)
	require.NoError(t, yaml.Unmarshal([]byte(full), &doc))

	app := core.NewAppContext(zerolog.Nop(), t.TempDir())
	app.RegisterService(gateway.MetricsService, prometheus.NewRegistry())
	queue := dispatch.NewQueue[int64](2, zerolog.Nop())
	app.RegisterService(dispatch.Service, queue)
	if responder != nil {
		app.RegisterService(pipeline.Service, responder)
	}

	m := &Telegram{}
	require.NoError(t, m.Configure(doc.Content[0]))
	require.NoError(t, m.Provision(app))
	require.NoError(t, m.Validate())
	m.client.retryUnit = time.Millisecond

	return &moduleFixture{module: m, app: app, queue: queue}
}

func (f *moduleFixture) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.module.Stop(ctx))
	require.NoError(t, f.queue.Shutdown(ctx))
}

func TestTelegram_Polling(t *testing.T) {
	bot := newFakeBot(t)
	responder := &fakeResponder{}
	f := newModule(t, bot, "allow_chats: [7]\npolling_timeout: 0\n", responder)

	bot.queue(
		textUpdate(1, 7, "first"),
		Update{UpdateID: 2, Message: &Message{MessageID: 2, Chat: Chat{ID: 7}}},
		textUpdate(3, 9, "let me in"),
		Update{UpdateID: 4, EditedMessage: textUpdate(4, 7, "edited").Message},
		textUpdate(5, 7, "second"),
	)

	require.NoError(t, f.module.Start())
	assert.Equal(t, "relay_bot", f.module.BotUser().Username)

	require.Eventually(t, func() bool { return len(bot.sentMessages()) == 2 }, 5*time.Second, 10*time.Millisecond)
	f.stop(t)

	assert.Equal(t, []string{"first", "second"}, responder.received(7), "one chat is answered in order")
	assert.Empty(t, responder.received(9))

	sent := bot.sentMessages()
	assert.Equal(t, "echo: first", sent[0].Text)
	assert.Equal(t, "echo: second", sent[1].Text)
	assert.Equal(t, 1, bot.called("deleteWebhook"), "a stale webhook is cleared before polling")

	updates := f.module.updates
	assert.Equal(t, 2.0, testutil.ToFloat64(updates.WithLabelValues(outcomeQueued)))
	assert.Equal(t, 2.0, testutil.ToFloat64(updates.WithLabelValues(outcomeIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(updates.WithLabelValues(outcomeDenied)))
}

func TestTelegram_Webhook(t *testing.T) {
	bot := newFakeBot(t)
	responder := &fakeResponder{}
	f := newModule(t, bot, `
mode: webhook
webhook_url: https://bot.example.com/webhooks/telegram
webhook_secret: s3cret
`, responder)

	webhooks := gateway.NewWebhookDispatcher(zerolog.Nop(), nil)
	f.app.RegisterService(gateway.WebhookService, webhooks)

	require.NoError(t, f.module.Start())
	hook := bot.webhookRequest()
	require.NotNil(t, hook)
	assert.Equal(t, "https://bot.example.com/webhooks/telegram", hook.URL)
	assert.Equal(t, "s3cret", hook.SecretToken)
	assert.Equal(t, []string{WebhookSource}, webhooks.Sources())

	router := chi.NewRouter()
	router.Post("/webhooks/{source}", webhooks.ServeHTTP)
	srv := httptest.NewServer(router)
	defer srv.Close()

	post := func(secret string, u Update) int {
		body, err := json.Marshal(u)
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/telegram", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(SecretHeader, secret)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post("s3cret", textUpdate(10, 5, "hi")))
	assert.Equal(t, http.StatusInternalServerError, post("wrong", textUpdate(11, 5, "sneaky")))

	f.stop(t)

	assert.Equal(t, []string{"hi"}, responder.received(5))
	sent := bot.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "echo: hi", sent[0].Text)
	assert.Empty(t, webhooks.Sources(), "stop unregisters the route")
	assert.Equal(t, 1, bot.called("deleteWebhook"))
}

func TestTelegram_WebhookNeedsGateway(t *testing.T) {
	bot := newFakeBot(t)
	f := newModule(t, bot, "mode: webhook\nwebhook_url: https://bot.example.com/hook\n", &fakeResponder{})

	err := f.module.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.http")
	assert.Zero(t, bot.called("setWebhook"))
}

func TestTelegram_StartNeedsPipeline(t *testing.T) {
	bot := newFakeBot(t)
	f := newModule(t, bot, "", nil)

	err := f.module.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), pipeline.Service)
	assert.Zero(t, bot.called("getMe"))
}

func TestTelegram_ProvisionNeedsQueue(t *testing.T) {
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("token: \"1:a\"\n"), &doc))

	m := &Telegram{}
	require.NoError(t, m.Configure(doc.Content[0]))
	err := m.Provision(core.NewAppContext(zerolog.Nop(), t.TempDir()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch")
}

func TestTelegram_SubmitAfterQueueClosed(t *testing.T) {
	bot := newFakeBot(t)
	f := newModule(t, bot, "", &fakeResponder{})
	require.NoError(t, f.queue.Shutdown(context.Background()))

	u := textUpdate(1, 7, "late")
	err := f.module.enqueue(&u)
	assert.ErrorIs(t, err, dispatch.ErrClosed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.module.updates.WithLabelValues(outcomeDropped)))
}
