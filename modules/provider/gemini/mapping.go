package gemini

import (
	"strings"

	"github.com/flemzord/chatrelay/internal/conversation"
)

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SafetySettings    []safetySetting  `json:"safetySettings,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	TopK             int      `json:"topK,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      *content `json:"content"`
	FinishReason string   `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var harmCategories = []string{
	"HARM_CATEGORY_DANGEROUS_CONTENT",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
}

func safetySettings(threshold string) []safetySetting {
	out := make([]safetySetting, len(harmCategories))
	for i, c := range harmCategories {
		out[i] = safetySetting{Category: c, Threshold: threshold}
	}
	return out
}

// Gemini names the assistant side "model".
func roleOf(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return "model"
	}
	return "user"
}

func textContent(role, text string) content {
	return content{Role: role, Parts: []part{{Text: text}}}
}

func toContents(turns []conversation.Turn) []content {
	out := make([]content, len(turns))
	for i, t := range turns {
		out[i] = textContent(roleOf(t.Role), t.Content)
	}
	return out
}

// replyText joins the text parts of the first candidate.
func replyText(resp *generateResponse) (string, bool) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), b.Len() > 0
}
