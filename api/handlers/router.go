package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"imageConverter/api/middleware"
)

// NewRouter wires the public HTTP surface. A nil limiter disables rate limiting.
func NewRouter(h *JobHandler, limiter *rate.Limiter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.TraceID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(middleware.RateLimit(limiter))
		}
		r.Post("/convert", h.Convert)
	})
	r.Get("/status/{jobId}", h.Status)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
