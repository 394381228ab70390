package anthropic

import (
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/provider"
)

// convertRequest builds Messages API parameters: the persona goes in the
// System block and the turns become alternating messages.
func convertRequest(req provider.Request, cfg *Config) sdkanthropic.MessageNewParams {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
		System:    []sdkanthropic.TextBlockParam{{Text: req.System}},
		Messages:  convertTurns(req.Turns()),
	}
	if cfg.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*cfg.Temperature)
	}
	return params
}

// convertTurns drops leading assistant turns, since a conversation must open
// with the user, and folds consecutive same-role turns into one message.
func convertTurns(turns []conversation.Turn) []sdkanthropic.MessageParam {
	for len(turns) > 0 && turns[0].Role == conversation.RoleAssistant {
		turns = turns[1:]
	}

	var (
		result []sdkanthropic.MessageParam
		blocks []sdkanthropic.ContentBlockParamUnion
		role   conversation.Role
	)
	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == conversation.RoleAssistant {
			result = append(result, sdkanthropic.NewAssistantMessage(blocks...))
		} else {
			result = append(result, sdkanthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}

	for _, t := range turns {
		if t.Role != role {
			flush()
			role = t.Role
		}
		blocks = append(blocks, sdkanthropic.NewTextBlock(t.Content))
	}
	flush()
	return result
}

// replyText joins every text block of the response.
func replyText(msg *sdkanthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok && v.Text != "" {
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}
