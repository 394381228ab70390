package openai

import (
	"encoding/json"
	"strings"

	"github.com/flemzord/chatrelay/internal/provider"
)

// mapHTTPError turns a non-2xx response into a provider.Failure.
// Returns nil for 2xx status codes.
func mapHTTPError(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	return provider.StatusFailure(backendName, statusCode, msg)
}
