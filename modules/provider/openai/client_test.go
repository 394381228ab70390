package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/core"
	"github.com/flemzord/chatrelay/internal/persona"
	"github.com/flemzord/chatrelay/internal/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = conversation.Key{ChatID: 77, Persona: "blueme"}

func newTestProvider(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := &Provider{
		config:   Config{APIKey: "sk-test", BaseURL: srv.URL},
		client:   srv.Client(),
		personas: persona.Set{"blueme": "You are Blueme."},
	}
	p.config.defaults()
	return p
}

func readRequestBody(t *testing.T, r *http.Request) chatRequest {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req chatRequest
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func window(contents ...string) []conversation.Turn {
	turns := make([]conversation.Turn, len(contents))
	for i, c := range contents {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		turns[i] = conversation.Turn{Key: key, Role: role, Content: c, Provider: backendName}
	}
	return turns
}

func TestGenerateReply_Success(t *testing.T) {
	var got chatRequest
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		got = readRequestBody(t, r)
		_, _ = io.WriteString(w, `{"id":"c1","choices":[{"index":0,"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}]}`)
	}))

	reply, err := p.GenerateReply(context.Background(), window("hi", "hey", "how are you"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 500, got.MaxCompletionTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	assert.Equal(t, []chatMessage{
		{Role: "system", Content: "You are Blueme."},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hey"},
		{Role: "user", Content: "how are you"},
	}, got.Messages)
}

func TestGenerateReply_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantStatus int
		wantDetail string
	}{
		{"rate limited", 429, `{"error":{"message":"slow down","type":"rate_limit"}}`, provider.ErrRateLimited, 429, "slow down"},
		{"unauthorized", 401, `{"error":{"message":"bad key"}}`, provider.ErrAuth, 401, "bad key"},
		{"server error", 503, `upstream down`, provider.ErrUnavailable, 503, "upstream down"},
		{"bad request", 400, `{"error":{"message":"nope"}}`, provider.ErrBadRequest, 400, "nope"},
		{"no choices", 200, `{"choices":[]}`, provider.ErrNoReply, 0, ""},
		{"empty content", 200, `{"choices":[{"message":{"role":"assistant","content":""}}]}`, provider.ErrNoReply, 0, ""},
		{"not json", 200, `<html>`, provider.ErrNoReply, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := p.GenerateReply(context.Background(), window("hi"))

			var f *provider.Failure
			require.ErrorAs(t, err, &f)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, backendName, f.Backend)
			assert.Equal(t, tt.wantStatus, f.HTTPStatus)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, f.Detail)
			}
		})
	}
}

func TestGenerateReply_Timeout(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GenerateReply(ctx, window("hi"))
	var f *provider.Failure
	require.ErrorAs(t, err, &f)
	assert.ErrorIs(t, err, provider.ErrTimeout)
	assert.Zero(t, f.HTTPStatus)
}

func TestGenerateReply_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := &Provider{
		config:   Config{APIKey: "sk-test", BaseURL: url},
		client:   &http.Client{},
		personas: persona.Set{"blueme": "x"},
	}
	p.config.defaults()

	_, err := p.GenerateReply(context.Background(), window("hi"))
	assert.ErrorIs(t, err, provider.ErrUnavailable)
}

func TestGenerateReply_EmptyWindowNeverCallsBackend(t *testing.T) {
	called := false
	p := newTestProvider(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	_, err := p.GenerateReply(context.Background(), nil)
	assert.ErrorIs(t, err, provider.ErrBadRequest)
	assert.False(t, called)
}

func TestModule_Lifecycle(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	ctx := core.NewAppContext(zerolog.Nop(), t.TempDir())
	_, err := ctx.LoadModule("provider.openai")
	assert.Error(t, err, "persona resolver is required")

	ctx.RegisterService(provider.PersonaService, persona.Set{"blueme": "x"})
	_, err = ctx.LoadModule("provider.openai")
	require.NoError(t, err)

	adapter, err := provider.FromApp(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openai", adapter.Name())
	assert.Equal(t, "sk-env", adapter.(*Provider).config.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	c := Config{}
	c.defaults()
	assert.Error(t, c.validate())

	c = Config{APIKey: "k", Timeout: "soon"}
	c.defaults()
	assert.Error(t, c.validate())

	c = Config{APIKey: "k"}
	c.defaults()
	require.NoError(t, c.validate())
	assert.Equal(t, time.Minute, c.parsedTimeout())
}
