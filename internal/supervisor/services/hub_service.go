// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package services

import (
	"context"
)

// EventHub interface matches *websocket.Hub's Run method.
//
// This interface allows the HubService to work with the Hub without
// importing the websocket package, avoiding circular dependencies.
//
// Satisfied by *websocket.Hub from internal/websocket/hub.go.
type EventHub interface {
	Run(ctx context.Context) error
}

// HubService wraps the WebSocket hub as a supervised service.
//
// The hub's Run method already implements the suture.Service pattern,
// so this wrapper simply delegates to it and provides a name for logging.
//
// Example usage:
//
//	hub := websocket.NewHub()
//	svc := services.NewHubService(hub)
//	tree.AddMessagingService(svc)
type HubService struct {
	hub  EventHub
	name string
}

// NewHubService creates a new WebSocket hub service wrapper.
func NewHubService(hub EventHub) *HubService {
	return &HubService{
		hub:  hub,
		name: "websocket-hub",
	}
}

// Serve implements suture.Service.
//
// This method delegates to hub.Run which:
//  1. Processes client registration/unregistration and broadcasts
//  2. Returns when the context is canceled
//  3. Gracefully closes all clients on shutdown
//
// The method returns ctx.Err() on normal shutdown.
func (w *HubService) Serve(ctx context.Context) error {
	return w.hub.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (w *HubService) String() string {
	return w.name
}
