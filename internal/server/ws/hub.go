// Package ws pushes listing updates to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

const inboxSize = 256

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Config describes the hub's channels and the status sent on connect.
type Config struct {
	Channels  []string
	Mode      string
	StartedAt time.Time
}

type frame struct {
	channel string
	data    []byte
}

// Hub fans listing frames out to connected clients by channel. Frames arrive
// from a SignalBus subscription when several processes share Redis, or
// directly through Publish. The newest frame per channel is replayed to every
// client that joins, so a fresh page shows the listing without waiting for the
// next refresh.
type Hub struct {
	channels  []string
	bus       domain.SignalBus
	mode      string
	startedAt time.Time
	logger    *slog.Logger

	inbox  chan frame
	joins  chan *client
	leaves chan *client
	done   chan struct{}

	// latest is owned by the Run goroutine.
	latest map[string][]byte

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. bus may be nil, in which case only Publish feeds it.
func NewHub(bus domain.SignalBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		channels:  cfg.Channels,
		bus:       bus,
		mode:      mode,
		startedAt: startedAt,
		logger:    logger.With(slog.String("component", "ws_hub")),
		inbox:     make(chan frame, inboxSize),
		joins:     make(chan *client),
		leaves:    make(chan *client),
		done:      make(chan struct{}),
		latest:    make(map[string][]byte),
		clients:   make(map[*client]struct{}),
	}
}

// Publish queues data for every client subscribed to channel. When the inbox
// is full the frame is dropped; the next refresh supersedes it anyway.
func (h *Hub) Publish(ctx context.Context, channel string, data []byte) error {
	select {
	case h.inbox <- frame{channel: channel, data: data}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.logger.Warn("ws: inbox full, dropping frame", slog.String("channel", channel))
	}
	return nil
}

// Run owns client membership and delivery until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus != nil {
		for _, ch := range h.channels {
			go h.bridge(ctx, ch)
		}
	}

	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			clear(h.clients)
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.joins:
			h.join(c)

		case c := <-h.leaves:
			h.leave(c)

		case f := <-h.inbox:
			h.latest[f.channel] = f.data
			h.deliver(f)
		}
	}
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	c.offer(h.hello(c))
	for _, ch := range c.channels() {
		if data, ok := h.latest[ch]; ok {
			c.offer(data)
		}
	}
	h.logger.Info("ws: client connected", slog.String("client_id", c.id), slog.Int("total_clients", n))
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("ws: client disconnected", slog.String("client_id", c.id), slog.Int("total_clients", n))
}

func (h *Hub) deliver(f frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(f.channel) {
			continue
		}
		if !c.offer(f.data) {
			h.logger.Warn("ws: slow client, frame dropped", slog.String("client_id", c.id), slog.String("channel", f.channel))
		}
	}
}

// bridge copies one bus channel into the inbox.
func (h *Hub) bridge(ctx context.Context, channel string) {
	stream, err := h.bus.Subscribe(ctx, channel)
	if err != nil {
		h.logger.Error("ws: bus subscribe failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	h.logger.Info("ws: bridging bus channel", slog.String("channel", channel))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-stream:
			if !ok {
				h.logger.Warn("ws: bus channel closed", slog.String("channel", channel))
				return
			}
			select {
			case h.inbox <- frame{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) hello(c *client) []byte {
	msg, _ := json.Marshal(map[string]any{
		"type": "hello",
		"payload": map[string]any{
			"client_id":      c.id,
			"mode":           h.mode,
			"channels":       c.channels(),
			"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		},
	})
	return msg
}

// HandleWS upgrades the request and hands the connection to the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(uuid.NewString(), h, conn, h.channels)
	select {
	case h.joins <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
