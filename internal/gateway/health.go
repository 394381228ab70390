package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Provider string `json:"provider"`
	Persona  string `json:"persona"`
	Error    string `json:"error,omitempty"`
}

// handleHealth reports 200 while the history store answers a ping and 503
// otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if g.conversations != nil {
			resp.Provider = g.conversations.Provider()
			resp.Persona = g.conversations.Persona()
		}

		code := http.StatusOK
		if err := g.pingStore(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			code = http.StatusServiceUnavailable
			g.logger.Warn().Err(err).Msg("health check failed")
		}
		writeJSON(w, code, resp)
	}
}

func (g *Gateway) pingStore(ctx context.Context) error {
	if g.store == nil {
		return errNoStore
	}
	ctx, cancel := context.WithTimeout(ctx, g.config.HealthTimeout)
	defer cancel()
	return g.store.Ping(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
