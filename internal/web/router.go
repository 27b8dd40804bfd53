// Package web is the HTTP surface: catalog uploads, background jobs,
// snapshot browsing and queue control.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the chi router and registers every route. It is the
// single source of truth for the HTTP surface area.
func NewRouter(s *Server, reg prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// /imports/preview must be registered before handlers that would
		// otherwise swallow the literal path segment.
		r.Post("/imports/preview", s.previewImport)
		r.Post("/imports", s.createImport)

		r.Get("/jobs/{id}", s.getJob)

		r.Get("/snapshots", s.listSnapshots)
		r.Get("/snapshots/{id}", s.getSnapshot)
		r.Get("/snapshots/{id}/diff", s.diffSnapshot)

		r.Get("/queue", s.queueCounts)
		r.Post("/queue/drain", s.triggerDrain)
		r.Post("/queue/requeue", s.requeueErrors)

		r.Get("/sync-log/{reference}", s.syncHistory)
	})

	return r
}
