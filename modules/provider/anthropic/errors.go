package anthropic

import (
	"encoding/json"
	"errors"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/chatrelay/internal/provider"
)

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// mapError converts an SDK error into a provider.Failure.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return provider.TransportFailure(backendName, err)
	}

	detail := apiErr.Error()
	var body apiErrorBody
	if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil && body.Error.Message != "" {
		detail = body.Error.Message
	}

	// 529 is Anthropic's "overloaded".
	return provider.StatusFailure(backendName, apiErr.StatusCode, detail)
}
