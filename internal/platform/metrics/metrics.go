// Package metrics holds the HTTP-level Prometheus metrics shared by every API
// route. Domain metrics live next to their domain.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests no route matched, keeping label cardinality
// bounded.
const unmatchedRoute = "unmatched"

// HTTPMetrics records request counts and latency per route pattern.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec
}

// New registers the HTTP metrics on the default registry.
func New() *HTTPMetrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the HTTP metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_id_http_requests_total",
			Help: "HTTP requests, by method, route and status code",
		}, []string{"method", "route", "status"}),
		EndpointLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passport_id_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveEndpointLatency records the latency for a route.
func (m *HTTPMetrics) ObserveEndpointLatency(method, route string, d time.Duration) {
	m.EndpointLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncrementRequests counts a finished request.
func (m *HTTPMetrics) IncrementRequests(method, route string, status int) {
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Middleware records every request under its chi route pattern, so session
// ids never become label values.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.IncrementRequests(r.Method, route, status)
		m.ObserveEndpointLatency(r.Method, route, time.Since(start))
	})
}
