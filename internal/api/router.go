// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cmalpass/frame-connect/internal/config"
)

// Router wires handlers and middleware into the daemon's HTTP surface.
type Router struct {
	handler    *Handler
	middleware *Middleware
	apiKey     string
}

// NewRouter creates a router around the given handler set.
func NewRouter(handler *Handler, cfg config.APIConfig) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(cfg),
		apiKey:     cfg.Key,
	}
}

// Setup builds the HTTP handler tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order. Request IDs come first so recovery
	// and everything after it log with the ID attached.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	// ========================
	// Probes and Metrics
	// ========================
	// Permissive rate limiting, no API key: orchestrators and scrapers
	// do not send credentials.
	r.Group(func(r chi.Router) {
		r.Use(rt.middleware.RateLimitHealth())
		r.Get("/healthz", rt.handler.HealthLive)
		r.Get("/readyz", rt.handler.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// API Endpoints
	// ========================
	// Rate limiting before instrumentation so floods are rejected
	// uncounted, auth last so rejected keys cannot probe faster than the
	// limiter allows.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())
		r.Use(Prometheus())
		r.Use(APIKeyAuth(rt.apiKey))

		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", rt.handler.ListMappings)
			r.With(rt.middleware.RateLimitWrite()).Post("/", rt.handler.CreateMapping)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.handler.GetMapping)
				r.With(rt.middleware.RateLimitWrite()).Delete("/", rt.handler.DeleteMapping)

				// Stricter limit: a single call can start a device
				// transfer.
				r.With(rt.middleware.RateLimitTrigger()).Post("/sync", rt.handler.TriggerSync)

				r.Get("/runs", rt.handler.MappingRuns)
				r.Get("/status", rt.handler.MappingStatus)
			})
		})

		r.Get("/devices", rt.handler.ListDevices)
		r.Get("/sources", rt.handler.ListSources)
		r.Get("/ws", rt.handler.WebSocket)
	})

	return r
}
