package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/tierfs/internal/logger"
	"github.com/marmos91/tierfs/pkg/metrics"
)

// NewRouter creates the chi router with all middleware and routes.
//
// Routes:
//   - GET  /health            - liveness probe
//   - GET  /health/ready      - readiness probe (both tiers mounted)
//   - GET  /health/tiers      - per-tier detail
//   - GET  /migration         - scheduler state and last cycle
//   - POST /migration/trigger - queue a cycle
//   - GET  /metrics           - Prometheus exposition (when enabled)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handler{deps: deps}

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.liveness)
		r.Get("/ready", h.readiness)
		r.Get("/tiers", h.tiers)
	})

	r.Route("/migration", func(r chi.Router) {
		r.Get("/", h.migration)
		r.Post("/trigger", h.trigger)
	})

	if reg := metrics.GetRegistry(); reg != nil {
		r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests through the internal logger so API access
// lines match the rest of the process output.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
