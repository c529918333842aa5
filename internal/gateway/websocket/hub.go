// Package websocket streams CoreHub bus events to dashboard clients over
// WebSocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/events/bus"
)

// Topic is the coarse stream a client subscribes to: the first segment of a
// bus subject ("task", "alert", "event").
func Topic(subject string) string {
	if i := strings.Index(subject, "."); i > 0 {
		return subject[:i]
	}
	return subject
}

// Hub fans bus events out to the connected dashboard clients.
type Hub struct {
	clients      map[*Client]bool
	topicClients map[string]map[*Client]bool

	unregister chan *Client
	broadcast  chan *bus.Event

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates the client hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		topicClients: make(map[string]map[*Client]bool),
		unregister:   make(chan *Client),
		broadcast:    make(chan *bus.Event, 256),
		logger:       log.WithFields(zap.String("component", "websocket_hub")),
	}
}

// Run processes registrations and broadcasts until the context ends.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.topicClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("client_id", client.ID))

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

// drop removes a client and its subscriptions. Caller holds the lock.
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	// The client's topic set is guarded by its own mutex; snapshot it so a
	// concurrent subscribe from ReadPump cannot race this iteration.
	client.mu.RLock()
	topics := make([]string, 0, len(client.topics))
	for topic := range client.topics {
		topics = append(topics, topic)
	}
	client.mu.RUnlock()

	for _, topic := range topics {
		if clients, ok := h.topicClients[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.topicClients, topic)
			}
		}
	}
}

func (h *Hub) deliver(event *bus.Event) {
	topic := Topic(event.Type)

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.topicClients[topic]))
	for client := range h.topicClients[topic] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer; disconnect it rather than block the hub.
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()
		}
	}
}

// Register adds a client to the hub. Registration is synchronous so the
// client's first subscription cannot arrive before it is known.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.logger.Debug("Client registered", zap.String("client_id", client.ID))
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast queues a bus event for delivery to subscribed clients.
func (h *Hub) Broadcast(event *bus.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event",
			zap.String("subject", event.Type))
	}
}

// Subscribe adds the client to a topic. Subscriptions from a client that has
// already been dropped are ignored; its send channel is closed.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	if _, ok := h.topicClients[topic]; !ok {
		h.topicClients[topic] = make(map[*Client]bool)
	}
	h.topicClients[topic][client] = true
}

// Unsubscribe removes the client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.topicClients[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topicClients, topic)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
