package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type runningChecker interface {
	Running() bool
}

// newOpsRouter serves the registry on /metrics and reports the reaper loop
// state on /healthz.
func newOpsRouter(g prometheus.Gatherer, r runningChecker) http.Handler {
	router := chi.NewRouter()
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !r.Running() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("reaper stopped\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return router
}
