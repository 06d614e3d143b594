package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fxmonitor/internal/metrics"
)

// AlertSubscriber provides the Redis Pub/Sub feed of alert events.
type AlertSubscriber interface {
	SubscribeAlerts(ctx context.Context) (*goredis.PubSub, error)
}

// Hub manages WebSocket clients and fans alert events out to the
// client owning each alert. Alerts arrive over Redis Pub/Sub so every
// API instance sees alerts fired by any monitor instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	replay  *ReplayBuffer
	metrics *metrics.Metrics
	log     *logrus.Entry
}

// NewHub creates a Hub. metrics may be nil.
func NewHub(m *metrics.Metrics, log *logrus.Entry) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(200),
		metrics: m,
		log:     log,
	}
}

// Run consumes the alert Pub/Sub feed until the context is cancelled.
// A dropped subscription is retried with a short backoff.
func (h *Hub) Run(ctx context.Context, sub AlertSubscriber) {
	for {
		if err := h.consume(ctx, sub); err != nil {
			h.log.WithError(err).Warn("alert subscription lost, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (h *Hub) consume(ctx context.Context, sub AlertSubscriber) error {
	pubsub, err := sub.SubscribeAlerts(ctx)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.Broadcast([]byte(msg.Payload))
		}
	}
}

// Broadcast delivers one alert envelope to the owning user's clients
// and retains it for replay. The envelope is the JSON notification
// alert published by the monitor.
func (h *Hub) Broadcast(data []byte) {
	var owner struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(data, &owner); err != nil {
		h.log.WithError(err).Warn("dropping malformed alert envelope")
		return
	}

	h.replay.Push(owner.UserID, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.userID != owner.UserID {
			continue
		}
		select {
		case client.send <- data:
			if h.metrics != nil {
				h.metrics.WSAlertFanouts.Inc()
			}
		default:
			// Slow consumer; drop rather than block the feed.
		}
	}
}

// Register attaches an upgraded connection as an authenticated client
// and starts its pumps. Buffered alerts for the user are replayed
// before live traffic.
func (h *Hub) Register(conn *websocket.Conn, userID int64) {
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
		userID: userID,
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
	h.log.WithFields(logrus.Fields{"user_id": userID, "clients": count}).
		Info("ws client connected")

	for _, data := range h.replay.ForUser(userID) {
		select {
		case client.send <- data:
		default:
		}
	}

	go client.writePump()
	go client.readPump()
}

// removeClient detaches a client. Safe to call once per client; the
// read pump owns the call.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
