// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
)

// Message types pushed to clients.
const (
	// MessageTypeSyncCompleted carries a full run result after each
	// reconciliation.
	MessageTypeSyncCompleted = "sync_completed"

	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the wire envelope for every hub broadcast.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks connected clients and fans broadcasts out to them.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Message

	// Register and Unregister are serviced by Run; the HTTP upgrade
	// handler and client read pumps send on them.
	Register   chan *Client
	Unregister chan *Client

	mu     sync.RWMutex
	logger zerolog.Logger
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logging.With().Str("component", "websocket-hub").Logger(),
	}
}

// Run services registrations and broadcasts until ctx is canceled, then
// closes every client and returns ctx.Err.
//
// When several channels are ready Go's select picks one at random, so the
// loop checks in priority order: shutdown first, then lifecycle events,
// then broadcasts. Client membership is settled before any delivery.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// BroadcastJSON queues a message for every connected client. A full queue
// drops the message; run events are advisory and the dashboard re-polls.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		h.logger.Warn().Str("message_type", messageType).Msg("Broadcast queue full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	h.logger.Info().Int("total_clients", total).Msg("Client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	_, known := h.clients[client]
	if known {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if known {
		metrics.WSConnections.Set(float64(total))
		h.logger.Info().Int("total_clients", total).Msg("Client disconnected")
	}
}

// broadcastToClients delivers one message to every client in ID order.
// A client whose queue is full is evicted; one stuck reader must not hold
// up the rest.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var evicted []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		close(client.send)
		delete(h.clients, client)
		h.logger.Debug().Uint64("client_id", client.id).Msg("Evicting slow client")
	}
	if len(evicted) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

// shutdown closes every client so a supervised restart begins clean.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	// Context cancellation is the normal stop path, not an error.
	h.logger.Info().
		Int("clients_closed", closed).
		AnErr("reason", ctx.Err()).
		Msg("Hub stopped")
}
