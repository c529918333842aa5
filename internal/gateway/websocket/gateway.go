package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/logger"
	"github.com/karl-ai/corehub/internal/events/bus"
)

// rebroadcast patterns: everything about tasks and alerts reaches the
// dashboard.
var subjects = []string{"task.>", "alert.>", "event.>"}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard origins are not pinned; the API carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway bridges the event bus into the WebSocket hub.
type Gateway struct {
	hub      *Hub
	eventBus bus.EventBus
	subs     []bus.Subscription
	logger   *logger.Logger
}

// NewGateway creates the gateway over an existing hub.
func NewGateway(hub *Hub, eventBus bus.EventBus, log *logger.Logger) *Gateway {
	return &Gateway{hub: hub, eventBus: eventBus, logger: log}
}

// Start subscribes to the task and alert subjects and begins forwarding.
func (g *Gateway) Start() error {
	for _, subject := range subjects {
		sub, err := g.eventBus.Subscribe(subject, func(ctx context.Context, event *bus.Event) error {
			g.hub.Broadcast(event)
			return nil
		})
		if err != nil {
			g.Stop()
			return err
		}
		g.subs = append(g.subs, sub)
	}
	g.logger.Info("Gateway forwarding bus events", zap.Int("subjects", len(subjects)))
	return nil
}

// Stop drops the bus subscriptions.
func (g *Gateway) Stop() {
	for _, sub := range g.subs {
		_ = sub.Unsubscribe()
	}
	g.subs = nil
}

// HandleConnection upgrades an HTTP request and attaches the client to the
// hub. Mounted at GET /ws.
func (g *Gateway) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, g.hub, g.logger)
	g.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
