// Package client provides a reusable WebSocket client for load testing the
// signaling server. It speaks the server's envelope protocol with gobwas/ws
// (the same library the server uses) and tracks per-connection performance
// metrics.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Client -> Server message types.
const (
	TypeJoinRoom        = "join-room"
	TypeOffer           = "offer"
	TypeAnswer          = "answer"
	TypeAddIceCandidate = "add-ice-candidate"
	TypeUserInfo        = "user-info"
	TypeChatMessage     = "chat-message"
	TypeSkipUser        = "skip-user"
	TypeStopSearching   = "stop-searching"
)

// Server -> Client message types.
const (
	TypeLobby         = "lobby"
	TypeSendOffer     = "send-offer"
	TypePeerLeft      = "peer-left"
	TypeSearchStopped = "search-stopped"
)

// Envelope is the outer frame shape shared by both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendOffer is the pairing notification payload.
type SendOffer struct {
	RoomID string `json:"roomId"`
	Role   string `json:"role"`
}

// Metrics tracks per-connection performance data.
type Metrics struct {
	ConnectLatency   time.Duration
	MessagesReceived int
	MessagesSent     int
	Errors           int
}

// Client is a single simulated user connection. It manages the WebSocket
// lifecycle and dispatches inbound envelopes to registered handlers.
type Client struct {
	conn      net.Conn
	mu        sync.Mutex
	metrics   Metrics
	handlers  map[string]func(json.RawMessage)
	done      chan struct{}
	closeOnce sync.Once

	roomMu sync.Mutex
	roomID string
	role   string
}

// New connects to the given WebSocket URL and starts the background read
// loop. The send-offer notification is tracked internally so RoomID and Role
// reflect the current pairing.
func New(ctx context.Context, url string) (*Client, error) {
	start := time.Now()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
	c.metrics.ConnectLatency = time.Since(start)

	go c.readLoop()

	return c, nil
}

// Send writes an envelope with the given type and payload. Goroutine-safe.
func (c *Client) Send(msgType string, payload interface{}) error {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.MessagesSent++
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// Join submits the profile and enters the waiting queue.
func (c *Client) Join(name string, interests []string) error {
	if interests == nil {
		interests = []string{}
	}
	return c.Send(TypeJoinRoom, map[string]interface{}{
		"name":      name,
		"interests": interests,
		"location":  "",
	})
}

// Chat sends a chat message through the current room.
func (c *Client) Chat(message string) error {
	return c.Send(TypeChatMessage, map[string]string{"message": message})
}

// Skip requests a new partner.
func (c *Client) Skip() error {
	return c.Send(TypeSkipUser, nil)
}

// Stop leaves the waiting queue.
func (c *Client) Stop() error {
	return c.Send(TypeStopSearching, nil)
}

// On registers a handler for a server message type. The handler receives the
// payload JSON and runs on the read loop goroutine, so it must not block.
// Registering a second handler for the same type replaces the first.
func (c *Client) On(msgType string, handler func(json.RawMessage)) {
	c.handlers[msgType] = handler
}

// RoomID returns the id of the room the client was last paired into, or "".
func (c *Client) RoomID() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

// Role returns the negotiation role from the last pairing, or "".
func (c *Client) Role() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.role
}

// WaitForRoom blocks until the client has been paired or the context ends.
func (c *Client) WaitForRoom(ctx context.Context) (string, error) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.done:
			return "", fmt.Errorf("connection closed before pairing")
		case <-ticker.C:
			if id := c.RoomID(); id != "" {
				return id, nil
			}
		}
	}
}

// Close closes the connection and stops the read loop. Safe to call twice.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// GetMetrics returns a copy of the client's metrics.
func (c *Client) GetMetrics() Metrics {
	return c.metrics
}

// readLoop reads frames until the connection closes, tracking the current
// room from send-offer and peer-left before dispatching to handlers.
func (c *Client) readLoop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
				// Intentional close, not an error.
				return
			default:
			}
			c.metrics.Errors++
			return
		}

		c.metrics.MessagesReceived++

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Type {
		case TypeSendOffer:
			var note SendOffer
			if err := json.Unmarshal(env.Payload, &note); err == nil {
				c.roomMu.Lock()
				c.roomID = note.RoomID
				c.role = note.Role
				c.roomMu.Unlock()
			}
		case TypePeerLeft:
			c.roomMu.Lock()
			c.roomID = ""
			c.role = ""
			c.roomMu.Unlock()
		}

		if handler, ok := c.handlers[env.Type]; ok {
			handler(env.Payload)
		}
	}
}
