package openai

import (
	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/provider"
)

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message"`
	FinishReason string       `json:"finish_reason"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// toMessages flattens a prepared request: the system prompt first, then
// every turn in window order.
func toMessages(req provider.Request) []chatMessage {
	turns := req.Turns()
	msgs := make([]chatMessage, 0, len(turns)+1)
	msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	for _, t := range turns {
		msgs = append(msgs, chatMessage{Role: roleOf(t.Role), Content: t.Content})
	}
	return msgs
}

func roleOf(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return "assistant"
	}
	return "user"
}

// replyText extracts choices[0].message.content.
func replyText(resp *chatResponse) (string, bool) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", false
	}
	content := resp.Choices[0].Message.Content
	return content, content != ""
}
