// Package httptransport wires the HTTP surface: middleware stack, health
// probes, metrics, and the token-guarded admin routes.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memebot/internal/consent/handler"
	"memebot/internal/platform/health"
	"memebot/internal/platform/middleware"
)

// NewRouter assembles all endpoints. Health and metrics stay open; every
// admin route requires the shared operator token.
func NewRouter(consentHandler *handler.Handler, healthHandler *health.Handler, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(adminToken, logger))
		consentHandler.Register(r)
	})

	return r
}
