// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package api

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
)

// RateLimitConfig defines rate limit parameters for a group of endpoints.
type RateLimitConfig struct {
	// Requests is the number of requests allowed in the window
	Requests int
	// Window is the time window for rate limiting
	Window time.Duration
}

// Endpoint-group rate limits. The trigger limit is configurable because a
// single call can start a device transfer; the rest are fixed.
var (
	// RateLimitAPI is the default limit for read endpoints.
	RateLimitAPI = RateLimitConfig{Requests: 100, Window: time.Minute}

	// RateLimitWrite covers mapping create and delete.
	RateLimitWrite = RateLimitConfig{Requests: 30, Window: time.Minute}

	// RateLimitHealth allows frequent probes without letting them flood.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}
)

// Middleware provides Chi-compatible middleware factories built from the
// API configuration.
type Middleware struct {
	config config.APIConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory for the given API config.
func NewMiddleware(cfg config.APIConfig) *Middleware {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Api-Key", "X-Request-ID"},
		MaxAge:         86400,
	})

	return &Middleware{
		config: cfg,
		cors:   corsHandler,
	}
}

// CORS returns the CORS middleware built from the configured origins.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the default per-IP rate limiter for API endpoints.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return m.limiter(RateLimitAPI)
}

// RateLimitWrite returns the per-IP rate limiter for mapping writes.
func (m *Middleware) RateLimitWrite() func(http.Handler) http.Handler {
	return m.limiter(RateLimitWrite)
}

// RateLimitHealth returns the per-IP rate limiter for probe endpoints.
func (m *Middleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.limiter(RateLimitHealth)
}

// RateLimitTrigger returns the per-IP rate limiter for manual sync
// triggers, configurable via API_TRIGGER_PER_MINUTE.
func (m *Middleware) RateLimitTrigger() func(http.Handler) http.Handler {
	perMinute := m.config.TriggerPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return m.limiter(RateLimitConfig{Requests: perMinute, Window: time.Minute})
}

// limiter builds an httprate limiter that records rejections in metrics and
// answers with the standard error envelope.
func (m *Middleware) limiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(r.URL.Path)
			NewResponseWriter(w, r).TooManyRequests("Rate limit exceeded, retry later")
		}),
	)
}

// RequestID returns a middleware that assigns each request a unique ID,
// honoring one supplied by an upstream proxy. The ID lands in the
// X-Request-ID response header and in the logging context so every log
// line of the request carries it.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := logging.ContextWithRequestID(r.Context(), requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Prometheus returns a middleware that instruments requests with count,
// duration, and in-flight gauges.
func Prometheus() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()
			wrapper := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			// Label by route pattern, not raw path, so mapping IDs do not
			// explode label cardinality.
			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}

			metrics.RecordAPIRequest(
				r.Method,
				endpoint,
				strconv.Itoa(wrapper.statusCode),
				time.Since(start),
			)
		})
	}
}

// APIKeyAuth returns a middleware that requires the configured key in the
// X-Api-Key header. With no key configured it is a no-op. The comparison
// is constant time.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	if key == "" {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-Api-Key")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logging.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Request rejected: invalid API key")
				NewResponseWriter(w, r).Unauthorized("Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusResponseWriter wraps http.ResponseWriter to capture the status code.
// It forwards Hijack and Flush because the WebSocket upgrade runs behind
// this wrapper and needs the underlying connection.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying WriteHeader.
func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection over for protocol upgrades.
func (w *statusResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Flush forwards streaming flushes to the underlying writer.
func (w *statusResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
