package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vecindia/asambleax/pkg/events"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Event  string `json:"event"`  // Event type to filter on, or "*" for everything
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // event type, "subscribed", "unsubscribed", "error", "ping"
	Payload interface{} `json:"payload"` // Event-specific data
}

// clientSubscriptions tracks which event types a client wants. Empty means
// everything: a client that never sends a subscribe message gets the full
// stream of its community.
type clientSubscriptions struct {
	mu     sync.RWMutex
	evts   map[string]bool
	filter bool
}

// NewClientSubscriptions creates a new clientSubscriptions tracker.
// Exported for testing.
func NewClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{evts: make(map[string]bool)}
}

// Subscribe narrows the stream to the given event type. "*" restores the full
// stream. Exported for testing.
func (cs *clientSubscriptions) Subscribe(event string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if event == "*" {
		cs.filter = false
		cs.evts = make(map[string]bool)
		return
	}
	cs.filter = true
	cs.evts[event] = true
}

// Unsubscribe removes an event type from the filter. Exported for testing.
func (cs *clientSubscriptions) Unsubscribe(event string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.evts, event)
}

// Wants reports whether the client should receive the event type.
// Exported for testing.
func (cs *clientSubscriptions) Wants(event string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if !cs.filter {
		return true
	}
	return cs.evts[event]
}

// HandleWebSocket upgrades the connection and streams the community's events
// from Redis Pub/Sub. The stream is tenant-scoped: the pattern is built from
// the community the middleware resolved, so a client never sees another
// community's events regardless of what it sends.
//
// Protocol:
// Client sends: {"action": "subscribe", "event": "vote.registered"}
// Client sends: {"action": "subscribe", "event": "*"}
// Client sends: {"action": "unsubscribe", "event": "vote.registered"}
//
// Server sends:
// - {"type": "question.opened" | "question.closed" | "vote.registered" | "quorum.updated", "payload": {...}}
// - {"type": "subscribed" | "unsubscribed", "payload": {"event": "..."}}
// - {"type": "ping", "payload": {"timestamp": 1234567890}}
// - {"type": "error", "payload": {"message": "..."}}
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	store := c.store(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Error("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected",
		zap.String("community", store.TaxID),
		zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := NewClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup

	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					c.App.Logger.Error("Panic in websocket goroutine",
						zap.String("goroutine", name),
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("remote_addr", r.RemoteAddr))
					cancel()
				}
			}()
			fn()
		}()
	}

	spawn("redis_subscriber", func() { c.streamCommunityEvents(ctx, store.TaxID, send, subs) })
	spawn("ping_ticker", func() { c.sendPings(ctx, send) })
	spawn("writer", func() { c.writeMessages(conn, send) })

	// Read messages from the client; blocks until the connection closes.
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	close(send)
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected",
		zap.String("community", store.TaxID),
		zap.String("remote_addr", r.RemoteAddr))
}

// streamCommunityEvents forwards the community's Pub/Sub events to the send
// channel, reconnecting with a capped backoff when the subscription drops.
func (c *Controller) streamCommunityEvents(ctx context.Context, taxID string, send chan<- ServerMessage, subs *clientSubscriptions) {
	pattern := events.Pattern(taxID)

	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
	)
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.pumpSubscription(ctx, pattern, send, subs)
		if ctx.Err() != nil {
			return
		}
		c.App.Logger.Warn("Event subscription dropped, will retry",
			zap.String("pattern", pattern),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case send <- ServerMessage{Type: "error", Payload: map[string]interface{}{
			"message":     "event stream interrupted, reconnecting",
			"retryIn":     backoff.Seconds(),
			"recoverable": true,
		}}:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Controller) pumpSubscription(ctx context.Context, pattern string, send chan<- ServerMessage, subs *clientSubscriptions) error {
	pubsub := c.App.RedisClient.PSubscribe(ctx, pattern)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				c.App.Logger.Warn("Dropping malformed event", zap.String("channel", msg.Channel))
				continue
			}
			if !subs.Wants(env.Type) {
				continue
			}

			select {
			case send <- ServerMessage{Type: env.Type, Payload: env}:
			default:
				// Slow consumer; drop rather than block the pump.
			}
		}
	}
}

func (c *Controller) sendPings(ctx context.Context, send chan<- ServerMessage) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case send <- ServerMessage{Type: "ping", Payload: map[string]int64{"timestamp": time.Now().Unix()}}:
			default:
			}
		}
	}
}

func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	defer cancel()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch msg.Action {
		case "subscribe":
			subs.Subscribe(msg.Event)
			send <- ServerMessage{Type: "subscribed", Payload: map[string]string{"event": msg.Event}}
		case "unsubscribe":
			subs.Unsubscribe(msg.Event)
			send <- ServerMessage{Type: "unsubscribed", Payload: map[string]string{"event": msg.Event}}
		default:
			send <- ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action"}}
		}
	}
}
