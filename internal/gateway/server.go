package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public.
	r.Get("/health", g.metrics.instrument("/health", g.handleHealth()))
	r.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{Registry: g.registry}))

	// Webhooks carry their own per-source auth.
	r.Post("/webhooks/{source}", g.metrics.instrument("/webhooks/{source}", g.dispatcher))

	// Operator endpoints. Not mounted if no auth is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Get("/api/conversations/{chat_id}/window",
				g.metrics.instrument("/api/conversations/{chat_id}/window", g.handleWindow()))
		})
	}

	return r
}
