package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testToken = "123456:test-token"

// fakeBot is an in-memory Bot API. Requests for unknown methods fail the test.
type fakeBot struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	calls    []string
	sent     []SendMessageRequest
	actions  []sendChatActionRequest
	webhook  *SetWebhookRequest
	batches  [][]Update
	sendFail func(SendMessageRequest) bool
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	b := &fakeBot{t: t}
	b.srv = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBot) client() *Client {
	c := NewClient(testToken, b.srv.URL)
	c.retryUnit = time.Millisecond
	return c
}

// queue schedules a batch returned by the next getUpdates.
func (b *fakeBot) queue(updates ...Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, updates)
}

func (b *fakeBot) sentMessages() []SendMessageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SendMessageRequest(nil), b.sent...)
}

func (b *fakeBot) chatActions() []sendChatActionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sendChatActionRequest(nil), b.actions...)
}

func (b *fakeBot) webhookRequest() *SetWebhookRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.webhook
}

func (b *fakeBot) called(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (b *fakeBot) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls = append(b.calls, method)
	b.mu.Unlock()

	switch method {
	case "getMe":
		reply(w, User{ID: 1, IsBot: true, FirstName: "Relay", Username: "relay_bot"})
	case "getUpdates":
		b.mu.Lock()
		var batch []Update
		if len(b.batches) > 0 {
			batch, b.batches = b.batches[0], b.batches[1:]
		}
		b.mu.Unlock()
		if batch == nil {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			batch = []Update{}
		}
		reply(w, batch)
	case "setWebhook":
		var req SetWebhookRequest
		assert.NoError(b.t, json.Unmarshal(body, &req))
		b.mu.Lock()
		b.webhook = &req
		b.mu.Unlock()
		reply(w, true)
	case "deleteWebhook":
		reply(w, true)
	case "sendChatAction":
		var req sendChatActionRequest
		assert.NoError(b.t, json.Unmarshal(body, &req))
		b.mu.Lock()
		b.actions = append(b.actions, req)
		b.mu.Unlock()
		reply(w, true)
	case "sendMessage":
		var req SendMessageRequest
		assert.NoError(b.t, json.Unmarshal(body, &req))
		b.mu.Lock()
		fail := b.sendFail != nil && b.sendFail(req)
		if !fail {
			b.sent = append(b.sent, req)
		}
		id := len(b.sent)
		b.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(APIResponse[json.RawMessage]{
				ErrorCode:   400,
				Description: "Bad Request: can't parse entities",
			})
			return
		}
		reply(w, Message{MessageID: id, Chat: Chat{ID: req.ChatID}, Text: req.Text})
	default:
		b.t.Errorf("unexpected Bot API method %q", method)
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func reply[T any](w http.ResponseWriter, result T) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(APIResponse[T]{OK: true, Result: result})
}

// fakeResponder records the texts it answers.
type fakeResponder struct {
	mu    sync.Mutex
	texts map[int64][]string
	fn    func(chatID int64, text string) (string, error)
}

func (f *fakeResponder) HandleIncoming(_ context.Context, chatID int64, text string) (string, error) {
	f.mu.Lock()
	if f.texts == nil {
		f.texts = map[int64][]string{}
	}
	f.texts[chatID] = append(f.texts[chatID], text)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(chatID, text)
	}
	return "echo: " + text, nil
}

func (f *fakeResponder) received(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts[chatID]...)
}

func textUpdate(id int, chatID int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id,
			From:      &User{ID: chatID, FirstName: "Ana"},
			Chat:      Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}
