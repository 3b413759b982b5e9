package wshub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const sendBuffer = 16

// Client commands are limited to a burst of typing, then commandRate per second.
const (
	commandRate  = 10
	commandBurst = 20
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type     string `json:"t"`
	PlayerID string `json:"id,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ServerMessage is the JSON structure sent to clients.
type ServerMessage struct {
	Type     string          `json:"t"`
	PlayerID string          `json:"id,omitempty"`
	Name     string          `json:"n,omitempty"`
	Phase    string          `json:"phase,omitempty"`
	From     string          `json:"from,omitempty"`
	Room     json.RawMessage `json:"room,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"err,omitempty"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	PlayerID string
	Name     string
	Conn     *websocket.Conn
	Send     chan []byte
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func NewClient(playerID, name string, conn *websocket.Conn) *Client {
	return &Client{
		PlayerID: playerID,
		Name:     name,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		limiter:  rate.NewLimiter(commandRate, commandBurst),
	}
}

// Allow reports whether the client may issue another command now.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// Reply queues a message for this client only. Drops if the channel is full.
func (c *Client) Reply(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("component", "wshub").Msg("marshal reply")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// closeSend closes Send once. Callers hold the hub lock.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// ReadPump decodes commands until the connection fails. Malformed frames are
// skipped; throttled commands and handler errors are answered with an
// "error" message.
func (c *Client) ReadPump(ctx context.Context, handle func(context.Context, ClientMessage) error) error {
	for {
		_, data, err := c.Conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			continue
		}
		if !c.Allow() {
			c.Reply(ServerMessage{Type: "error", Error: "rate limited"})
			continue
		}
		if msg.PlayerID == "" {
			msg.PlayerID = c.PlayerID
		}
		if err := handle(ctx, msg); err != nil {
			c.Reply(ServerMessage{Type: "error", Error: err.Error()})
		}
	}
}

// Hub manages the WebSocket connections of one room, keyed by player.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub. A second connection for the same player
// replaces the first, whose Send channel is closed. Returns false once the
// hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	if old, ok := h.clients[c.PlayerID]; ok && old != c {
		old.closeSend()
	}
	h.clients[c.PlayerID] = c
	h.mu.Unlock()

	h.BroadcastExcept(c.PlayerID, ServerMessage{Type: "join", PlayerID: c.PlayerID, Name: c.Name})
	return true
}

// Unregister removes the client if it is still the registered connection for
// its player, closes its Send channel, then broadcasts a leave message.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	cur, ok := h.clients[c.PlayerID]
	ok = ok && cur == c
	if ok {
		c.closeSend()
		delete(h.clients, c.PlayerID)
	}
	h.mu.Unlock()

	if ok {
		h.BroadcastExcept(c.PlayerID, ServerMessage{
			Type:     "leave",
			PlayerID: c.PlayerID,
		})
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msg ServerMessage) {
	h.BroadcastExcept("", msg)
}

// BroadcastExcept sends a message to all clients except the sender. Non-blocking: drops if channel full.
func (h *Hub) BroadcastExcept(senderID string, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("component", "wshub").Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if id == senderID {
			continue
		}
		select {
		case c.Send <- data:
		default:
			// Drop message if channel full
		}
	}
}

// Close disconnects every client; later registrations are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		c.closeSend()
		delete(h.clients, id)
	}
}
