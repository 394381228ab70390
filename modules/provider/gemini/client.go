package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/provider"
)

const maxResponseSize = 10 * 1024 * 1024

// chatSession mirrors the SDK chat abstraction for a single exchange: the
// stored window is the history and one message is sent. It is built per
// call; the store, not the session, keeps the conversation.
type chatSession struct {
	p       *Provider
	system  string
	history []content
}

func (p *Provider) startChat(system string, history []conversation.Turn) *chatSession {
	return &chatSession{p: p, system: system, history: toContents(history)}
}

// SendMessage sends text as the next user message and waits for the reply.
func (s *chatSession) SendMessage(ctx context.Context, text string) (string, error) {
	user := textContent("user", text)
	req := s.p.buildRequest(s.system, append(slices.Clip(s.history), user))

	var resp generateResponse
	if err := s.p.generateContent(ctx, req, &resp); err != nil {
		return "", err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", provider.NoReply(backendName, "prompt blocked: "+resp.PromptFeedback.BlockReason)
	}
	reply, ok := replyText(&resp)
	if !ok {
		detail := "candidates[0].content missing"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			detail += " (finish reason " + resp.Candidates[0].FinishReason + ")"
		}
		return "", provider.NoReply(backendName, detail)
	}
	return reply, nil
}

func (p *Provider) buildRequest(system string, contents []content) generateRequest {
	sys := textContent("", system)
	return generateRequest{
		Contents:          contents,
		SystemInstruction: &sys,
		GenerationConfig: generationConfig{
			Temperature:      p.config.Temperature,
			TopP:             p.config.TopP,
			TopK:             p.config.TopK,
			MaxOutputTokens:  p.config.MaxOutputTokens,
			ResponseMIMEType: "text/plain",
		},
		SafetySettings: safetySettings(p.config.SafetyThreshold),
	}
}

// generateContent posts req to models/{model}:generateContent and decodes
// a 2xx body into out.
func (p *Provider) generateContent(ctx context.Context, req generateRequest, out *generateResponse) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &provider.Failure{Backend: backendName, Err: fmt.Errorf("%w: %w", provider.ErrBadRequest, err)}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.config.BaseURL, url.PathEscape(p.config.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &provider.Failure{Backend: backendName, Err: fmt.Errorf("%w: %w", provider.ErrBadRequest, err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return provider.TransportFailure(backendName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return provider.TransportFailure(backendName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return provider.StatusFailure(backendName, resp.StatusCode, msg)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return provider.NoReply(backendName, "unmarshal response: "+err.Error())
	}
	return nil
}

// GenerateReply implements provider.Adapter. The session is seeded with all
// but the last turn, which is then sent and awaited.
func (p *Provider) GenerateReply(ctx context.Context, window []conversation.Turn) (string, error) {
	req, err := provider.Prepare(backendName, p.personas, window)
	if err != nil {
		return "", err
	}
	return p.startChat(req.System, req.History).SendMessage(ctx, req.Last.Content)
}
