package gateway

import (
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   int64         `json:"uptime_seconds"`
	Provider string        `json:"provider"`
	Persona  string        `json:"persona"`
	Window   *windowPolicy `json:"window,omitempty"`
	Webhooks []string      `json:"webhooks"`
}

type windowPolicy struct {
	MaxTurns  int    `json:"max_turns"`
	MaxAge    string `json:"max_age"`
	KeepTurns int    `json:"keep_turns"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:   int64(time.Since(g.startedAt) / time.Second),
			Webhooks: g.dispatcher.Sources(),
		}
		if g.conversations != nil {
			p := g.conversations.Policy()
			resp.Provider = g.conversations.Provider()
			resp.Persona = g.conversations.Persona()
			resp.Window = &windowPolicy{MaxTurns: p.MaxTurns, MaxAge: p.MaxAge.String(), KeepTurns: p.KeepTurns}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
