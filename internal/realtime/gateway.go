package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sathi-care/booking-service/internal/api"
	"github.com/sathi-care/booking-service/internal/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway upgrades authenticated HTTP requests to WebSocket connections
// and pumps hub messages out to them.
type Gateway struct {
	hub    *Hub
	secret []byte
	log    *zap.Logger
}

func NewGateway(hub *Hub, secret []byte, log *zap.Logger) *Gateway {
	return &Gateway{hub: hub, secret: secret, log: log}
}

// ServeWS handles GET /ws. The token rides the query string because
// browser WebSocket clients cannot set an Authorization header.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	user, err := api.ParseBearer("Bearer "+token, g.secret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		Send:   make(chan []byte, 32),
		Room:   user.ID.String(),
		UserID: user.ID.String(),
	}
	g.hub.Register(client)

	go g.writePump(conn, client)
	go g.readPump(conn, client)
}

func (g *Gateway) writePump(conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the gateway is push-only. It exists
// to notice the close handshake and keep pong deadlines fresh.
func (g *Gateway) readPump(conn *websocket.Conn, c *Client) {
	defer func() {
		g.hub.Unregister(c)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BridgeRedis pattern-subscribes to the per-user channels the booking
// engine publishes on and forwards each message to that user's room.
// Blocks until ctx is cancelled.
func BridgeRedis(ctx context.Context, client *redis.Client, hub *Hub, log *zap.Logger) error {
	sub := client.PSubscribe(ctx, notify.UserChannelPattern)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID := strings.TrimPrefix(msg.Channel, "user:")
			hub.Deliver(userID, []byte(msg.Payload))
			log.Debug("bridged event",
				zap.String("user_id", userID),
			)
		}
	}
}
