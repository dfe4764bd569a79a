// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package feed streams published session states and custom events to
// websocket clients as JSON messages.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/holomush/timeline/internal/observability"
	"github.com/holomush/timeline/internal/publish"
	"github.com/holomush/timeline/internal/snapshot"
)

// Message types.
const (
	TypeState = "state"
	TypeEvent = "event"
)

// Message is one JSON frame sent to clients.
type Message struct {
	Type     string          `json:"type"`
	Kind     string          `json:"kind"`
	Frame    uint64          `json:"frame"`
	State    json.RawMessage `json:"state,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// ErrHubStopped is returned by Send once the hub has stopped.
var ErrHubStopped = errors.New("feed hub stopped")

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithCodec sets the codec used to encode states.
func WithCodec(c *snapshot.Codec) Option {
	return func(h *Hub) { h.codec = c }
}

// WithMetrics counts connections and upgrades on the server's collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// Hub maintains the set of connected clients and fans messages out to
// them. Clients that cannot keep up are dropped.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	upgrader   websocket.Upgrader
	codec      *snapshot.Codec
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.codec == nil {
		h.codec = snapshot.NewCodec()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Run handles registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			connectedClients.Set(0)
			h.logger.Info("feed hub shutting down")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			connectedClients.Set(float64(n))
			h.logger.Debug("feed client connected", "remote", c.remote)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Debug("feed client disconnected", "remote", c.remote)
			}
			n := len(h.clients)
			h.mu.Unlock()
			connectedClients.Set(float64(n))
		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
					messagesSent.Inc()
				default:
					close(c.send)
					delete(h.clients, c)
					clientsDropped.Inc()
					h.logger.Warn("feed client too slow, dropped", "remote", c.remote)
				}
			}
			n := len(h.clients)
			h.mu.Unlock()
			connectedClients.Set(float64(n))
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send queues m for every client. It gives up when ctx is done or the hub
// has stopped.
func (h *Hub) Send(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return oops.In("feed").With("kind", m.Kind).Wrapf(err, "encode message")
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription returns a publisher subscription that forwards matching
// state updates and custom events to the hub.
func (h *Hub) Subscription(name string, kinds ...string) publish.Subscription {
	return publish.Subscription{
		Name:  name,
		Kinds: kinds,
		OnState: func(ctx context.Context, u publish.StateUpdate) error {
			doc, err := h.codec.Encode(u.State)
			if err != nil {
				return err
			}
			return h.Send(ctx, Message{
				Type:     TypeState,
				Kind:     u.Kind,
				Frame:    u.Frame,
				State:    doc,
				Metadata: u.Metadata,
			})
		},
		OnEvent: func(ctx context.Context, e publish.CustomEvent) error {
			return h.Send(ctx, Message{
				Type:    TypeEvent,
				Kind:    e.Name,
				Frame:   e.Frame,
				Payload: e.Payload,
			})
		},
	}
}

// ServeHTTP upgrades the request to a websocket and attaches the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.countRequest("failed")
		h.logger.Warn("feed upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	h.countRequest("ok")
	if h.metrics != nil {
		h.metrics.ConnectionsTotal.WithLabelValues("websocket").Inc()
	}

	c := newClient(h, conn, r.RemoteAddr)
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (h *Hub) countRequest(status string) {
	if h.metrics != nil {
		h.metrics.RequestsTotal.WithLabelValues("upgrade", status).Inc()
	}
}
