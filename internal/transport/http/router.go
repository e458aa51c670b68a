package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"passport-id/internal/platform/metrics"
	"passport-id/internal/platform/middleware"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires all public endpoints with middleware. Probes and /metrics
// sit outside the request timeout and content-type checks. httpMetrics may be
// nil.
func NewRouter(logger *slog.Logger, requestTimeout time.Duration, httpMetrics *metrics.HTTPMetrics, health Registrar, apis ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)

	health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Logger(logger))
		if httpMetrics != nil {
			r.Use(httpMetrics.Middleware)
		}
		r.Use(middleware.Timeout(requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		for _, api := range apis {
			api.Register(r)
		}
	})

	return r
}
