package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/provider"
)

// maxResponseSize is the maximum response body size (10 MB).
const maxResponseSize = 10 * 1024 * 1024

func (p *Provider) buildChatRequest(req provider.Request) chatRequest {
	return chatRequest{
		Model:               p.config.Model,
		Messages:            toMessages(req),
		MaxCompletionTokens: p.config.MaxCompletionTokens,
		Temperature:         p.config.Temperature,
	}
}

// newHTTPRequest creates an authenticated HTTP request for the OpenAI API.
func (p *Provider) newHTTPRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	return httpReq, nil
}

// doPost sends a POST request and returns the response body and status code.
// The response body is limited to maxResponseSize bytes.
func (p *Provider) doPost(ctx context.Context, path string, payload any) ([]byte, int, error) {
	httpReq, err := p.newHTTPRequest(ctx, path, payload)
	if err != nil {
		return nil, 0, &provider.Failure{Backend: backendName, Err: fmt.Errorf("%w: %w", provider.ErrBadRequest, err)}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, provider.TransportFailure(backendName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, provider.TransportFailure(backendName, fmt.Errorf("read response: %w", err))
	}
	return body, resp.StatusCode, nil
}

// GenerateReply implements provider.Adapter.
func (p *Provider) GenerateReply(ctx context.Context, window []conversation.Turn) (string, error) {
	req, err := provider.Prepare(backendName, p.personas, window)
	if err != nil {
		return "", err
	}

	body, status, err := p.doPost(ctx, "/chat/completions", p.buildChatRequest(req))
	if err != nil {
		return "", err
	}
	if httpErr := mapHTTPError(status, body); httpErr != nil {
		return "", httpErr
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", provider.NoReply(backendName, "unmarshal response: "+err.Error())
	}
	text, ok := replyText(&resp)
	if !ok {
		return "", provider.NoReply(backendName, "choices[0].message.content missing")
	}
	return text, nil
}
