// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is the slice of *http.Server lifecycle the wrapper needs.
// Kept as an interface so tests can substitute a fake listener.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts a blocking ListenAndServe server to suture's
// context-aware Serve contract. On context cancellation it drains active
// connections via Shutdown, bounded by shutdownTimeout.
//
//	server := &http.Server{Addr: ":8571", Handler: router}
//	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server for supervision. A non-positive
// shutdownTimeout falls back to 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. It returns ctx.Err() after a clean
// drain, or the listen/shutdown error so the supervisor restarts the
// service. http.ErrServerClosed is the expected result of Shutdown and
// is not treated as a failure.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		// Closed without our involvement. Treat as clean so the
		// supervisor does not thrash against an external Shutdown.
		return nil

	case <-ctx.Done():
		// The serve context is already canceled, so the drain gets
		// its own deadline.
		drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-listenErr
		return ctx.Err()
	}
}

// String identifies the service in suture's event log.
func (h *HTTPServerService) String() string { return "http-server" }
