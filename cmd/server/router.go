package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecoprado/pkg/platform/httputil"
)

const healthCheckTimeout = 2 * time.Second

func newRouter(gatherer prometheus.Gatherer, checks []healthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", healthHandler(checks))
	return r
}

// healthHandler answers 200 when every dependency responds and 503 otherwise,
// listing each dependency's status.
func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := map[string]string{}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[c.name] = err.Error()
				continue
			}
			results[c.name] = "ok"
		}

		httputil.WriteJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
