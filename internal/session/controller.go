// Package session implements the per-connection protocol state machine: it
// receives inbound frames from the transport, drives the user registry, the
// match engine, and the room registry, and emits outbound frames back to the
// transport. It is the only package that touches all of them, and it
// serializes every mutation behind a single mutex so matching and teardown
// are atomic with respect to concurrent joins and leaves.
package session

import (
	"sync"
	"time"

	"github.com/blinkpair/signal-server/internal/logx"
	"github.com/blinkpair/signal-server/internal/matching"
	"github.com/blinkpair/signal-server/internal/metrics"
	"github.com/blinkpair/signal-server/internal/protocol"
	"github.com/blinkpair/signal-server/internal/ratelimit"
	"github.com/blinkpair/signal-server/internal/relay"
	"github.com/blinkpair/signal-server/internal/room"
	"github.com/blinkpair/signal-server/internal/user"
)

// Sender delivers an encoded frame to a connection. Best-effort: delivery to
// a gone connection is a no-op.
type Sender interface {
	Send(connID string, data []byte)
}

// Config holds the controller's tunables.
type Config struct {
	MessageRate  float64 // chat messages per second per connection
	MessageBurst int     // chat message burst per connection
}

// DefaultConfig returns the standard controller settings.
func DefaultConfig() Config {
	return Config{
		MessageRate:  5,
		MessageBurst: 10,
	}
}

// frame is an outbound message staged while the controller mutex is held.
type frame struct {
	connID string
	data   []byte
}

// Controller is the per-connection event dispatcher. All registry mutations
// happen under mu as one critical section; outbound frames are staged in
// pending and flushed to the sender only after the mutex is released, so no
// network write ever happens while matching or teardown is in progress.
type Controller struct {
	mu      sync.Mutex
	users   *user.Registry
	engine  *matching.Engine
	rooms   *room.Registry
	relay   *relay.Relay
	sender  Sender
	chatLim *ratelimit.Limiter

	pending []frame // staged outbound frames, drained on unlock
}

// New wires a Controller over the given registries and transport. The relay
// writes through the controller's staging buffer, never directly to the
// sender.
func New(users *user.Registry, engine *matching.Engine, rooms *room.Registry, sender Sender, cfg Config) *Controller {
	c := &Controller{
		users:   users,
		engine:  engine,
		rooms:   rooms,
		sender:  sender,
		chatLim: ratelimit.NewLimiter(cfg.MessageRate, cfg.MessageBurst),
	}
	c.relay = relay.New(rooms, c)
	return c
}

// Send stages an outbound frame for delivery after the current critical
// section. It satisfies relay.Outbound and must only be called while the
// controller mutex is held.
func (c *Controller) Send(connID string, data []byte) {
	c.pending = append(c.pending, frame{connID: connID, data: data})
}

// flush delivers staged frames to the transport. Called after the mutex is
// released.
func (c *Controller) flush(frames []frame) {
	for _, f := range frames {
		c.sender.Send(f.connID, f.data)
	}
}

// takePending drains the staging buffer. Must be called with the mutex held.
func (c *Controller) takePending() []frame {
	out := c.pending
	c.pending = nil
	return out
}

// HandleConnect registers a new connection with a default profile.
func (c *Controller) HandleConnect(connID string) {
	c.mu.Lock()
	c.users.Register(connID)
	c.mu.Unlock()

	logx.Debug("session registered", "user_id", connID)
}

// HandleDisconnect tears down every piece of state the connection owns: its
// room (notifying the partner), its queue slot, its user record, and its rate
// limiter bucket. Safe to call more than once for the same connection.
func (c *Controller) HandleDisconnect(connID string) {
	c.mu.Lock()

	c.leaveRoom(connID)
	c.engine.Dequeue(connID)
	c.users.Remove(connID)
	c.updateGauges()

	out := c.takePending()
	c.mu.Unlock()

	c.chatLim.Forget(connID)
	c.flush(out)

	logx.Debug("session removed", "user_id", connID)
}

// HandleMessage parses an inbound frame and dispatches it to the matching
// handler. Malformed frames are counted and dropped; the client is never sent
// an error reply.
func (c *Controller) HandleMessage(connID string, data []byte) {
	msgType, payload, err := protocol.ParseClientMessage(data)
	if err != nil {
		metrics.DroppedMessages.WithLabelValues("invalid").Inc()
		logx.Debug("dropping malformed message", "user_id", connID, "error", err.Error())
		return
	}

	c.mu.Lock()

	switch msgType {
	case protocol.TypeJoinRoom:
		c.handleJoinRoom(connID, payload.(protocol.JoinRoomMsg))
	case protocol.TypeOffer:
		m := payload.(protocol.OfferMsg)
		c.relay.Offer(m.RoomID, connID, m)
	case protocol.TypeAnswer:
		m := payload.(protocol.AnswerMsg)
		c.relay.Answer(m.RoomID, connID, m)
	case protocol.TypeAddIceCandidate:
		m := payload.(protocol.AddIceCandidateMsg)
		c.relay.IceCandidate(m.RoomID, connID, m.Candidate, m.Type)
	case protocol.TypeUserInfo:
		m := payload.(protocol.UserInfoMsg)
		c.relay.UserInfo(m.RoomID, connID, m)
	case protocol.TypeChatMessage:
		c.handleChat(connID, payload.(protocol.ChatMessageMsg))
	case protocol.TypeSkipUser:
		c.handleSkip(connID)
	case protocol.TypeStopSearching:
		c.handleStop(connID)
	}

	out := c.takePending()
	c.mu.Unlock()

	c.flush(out)
}

// handleJoinRoom updates the profile, stamps the queue-join time, enqueues
// the user, and runs matching. The client is told it is in the lobby before
// any pairing notification. A join while paired ends the current room first,
// like a skip, so the sender is never queued and roomed at once.
func (c *Controller) handleJoinRoom(connID string, msg protocol.JoinRoomMsg) {
	c.leaveRoom(connID)

	c.users.UpdateProfile(connID, msg.Name, msg.Interests, msg.Location)
	c.engine.Enqueue(connID)

	c.stage(connID, protocol.TypeLobby, nil)
	c.runMatching()
	c.updateGauges()
}

// handleChat validates and rate limits a chat message, then relays it via
// the sender's current room.
func (c *Controller) handleChat(connID string, msg protocol.ChatMessageMsg) {
	if err := protocol.ValidateChatText(msg.Message); err != nil {
		metrics.DroppedMessages.WithLabelValues("invalid").Inc()
		logx.Debug("dropping invalid chat message", "user_id", connID, "error", err.Error())
		return
	}
	if !c.chatLim.Allow(connID) {
		metrics.DroppedMessages.WithLabelValues("rate_limited").Inc()
		return
	}
	c.relay.Chat(connID, msg.Message)
}

// handleSkip ends the current room, if any, and puts the skipping user back
// in the queue with a fresh timestamp. Skip from an idle or already-waiting
// user still lands in the lobby, so the client can treat skip as "find me
// someone" from any state. The abandoned partner gets exactly one peer-left
// and is not re-enqueued; rejoining is its own decision.
func (c *Controller) handleSkip(connID string) {
	c.leaveRoom(connID)

	if !c.engine.Queued(connID) {
		c.users.StampQueueJoined(connID, time.Now())
		c.engine.Enqueue(connID)
	}

	c.stage(connID, protocol.TypeLobby, nil)
	c.runMatching()
	c.updateGauges()
}

// handleStop takes the user fully idle: any current room is torn down (the
// partner gets peer-left), the queue slot is released, and the stop is
// acknowledged with search-stopped.
func (c *Controller) handleStop(connID string) {
	c.leaveRoom(connID)
	c.engine.Dequeue(connID)
	c.stage(connID, protocol.TypeSearchStopped, nil)
	c.updateGauges()
}

// leaveRoom destroys the room connID occupies, if any, and notifies the
// other participant. Returns true if a room was torn down. Destroying before
// staging peer-left makes duplicate teardown calls collapse to one
// notification.
func (c *Controller) leaveRoom(connID string) bool {
	rm := c.rooms.RoomOf(connID)
	if rm == nil {
		return false
	}

	other, ok := rm.Other(connID)
	c.rooms.Destroy(rm.ID)

	if ok {
		c.stage(other, protocol.TypePeerLeft, nil)
	}

	logx.Info("room destroyed", "room_id", rm.ID, "by", connID)
	return true
}

// runMatching drains the queue of every matchable pair, creating a room and
// notifying both peers for each. The oldest user of a pair takes the offerer
// role so both ends of the negotiation are deterministic.
func (c *Controller) runMatching() {
	for _, pair := range c.engine.MatchAll() {
		rm, err := c.rooms.Create(pair.Offerer, pair.Answerer)
		if err != nil {
			logx.Error(err, "refusing to pair, room state inconsistent",
				"offerer", pair.Offerer, "answerer", pair.Answerer)
			// Whoever is not actually in a room goes back to waiting instead
			// of being dropped with the refused pair.
			for _, id := range []string{pair.Offerer, pair.Answerer} {
				if c.rooms.RoomOf(id) == nil {
					c.engine.Enqueue(id)
				}
			}
			continue
		}

		c.observeWait(pair.Offerer)
		c.observeWait(pair.Answerer)

		c.stage(pair.Offerer, protocol.TypeSendOffer, protocol.SendOfferMsg{
			RoomID: rm.ID,
			Role:   protocol.RoleOfferer,
		})
		c.stage(pair.Answerer, protocol.TypeSendOffer, protocol.SendOfferMsg{
			RoomID: rm.ID,
			Role:   protocol.RoleAnswerer,
		})

		logx.Info("room created", "room_id", rm.ID,
			"offerer", pair.Offerer, "answerer", pair.Answerer)
	}
}

// observeWait records how long a user waited in the queue before pairing.
func (c *Controller) observeWait(userID string) {
	u := c.users.Get(userID)
	if u == nil {
		return
	}
	metrics.MatchWaitDuration.Observe(time.Since(u.QueueJoinedAt).Seconds())
}

// stage encodes a server frame and appends it to the outbound buffer. An
// encoding failure is a programming error on our own types; it is logged and
// the frame dropped rather than crashing the event path.
func (c *Controller) stage(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		logx.Error(err, "failed to encode server message", "type", msgType)
		return
	}
	c.Send(connID, data)
}

// updateGauges refreshes the queue and room gauges. Called inside the
// critical section after any mutation.
func (c *Controller) updateGauges() {
	metrics.QueueSize.Set(float64(c.engine.QueueLen()))
	metrics.ActiveRooms.Set(float64(c.rooms.Count()))
}

// Close releases the controller's background resources.
func (c *Controller) Close() {
	c.chatLim.Close()
}
