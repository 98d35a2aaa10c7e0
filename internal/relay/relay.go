// Package relay routes per-room signaling messages to "the other" participant
// of a room. Payloads are forwarded unchanged; the server never interprets
// SDP or ICE content. Unknown rooms or senders cause a silent drop, since
// in-flight messages racing a teardown are expected under normal churn.
package relay

import (
	"encoding/json"

	"github.com/blinkpair/signal-server/internal/logx"
	"github.com/blinkpair/signal-server/internal/metrics"
	"github.com/blinkpair/signal-server/internal/protocol"
	"github.com/blinkpair/signal-server/internal/room"
)

// Outbound delivers a frame to a connection. Sends are best-effort and must
// not block the caller beyond handing the frame to the transport.
type Outbound interface {
	Send(connID string, data []byte)
}

// Relay resolves the receiving peer through the room registry and writes the
// re-encoded frame to the outbound transport.
type Relay struct {
	rooms *room.Registry
	out   Outbound
}

// New creates a relay over the given room registry and outbound transport.
func New(rooms *room.Registry, out Outbound) *Relay {
	return &Relay{rooms: rooms, out: out}
}

// Offer forwards an SDP offer to the sender's room partner.
func (r *Relay) Offer(roomID, senderID string, msg protocol.OfferMsg) {
	r.forward(roomID, senderID, protocol.TypeOffer, protocol.OfferMsg{
		SDP:    msg.SDP,
		RoomID: roomID,
	})
}

// Answer forwards an SDP answer to the sender's room partner.
func (r *Relay) Answer(roomID, senderID string, msg protocol.AnswerMsg) {
	r.forward(roomID, senderID, protocol.TypeAnswer, protocol.AnswerMsg{
		SDP:    msg.SDP,
		RoomID: roomID,
	})
}

// IceCandidate forwards an ICE candidate. The candidate body and the
// sender/receiver tag pass through verbatim; the relayed copy drops the room
// id, matching the original notification shape.
func (r *Relay) IceCandidate(roomID, senderID string, candidate json.RawMessage, candidateType string) {
	r.forward(roomID, senderID, protocol.TypeAddIceCandidate, protocol.AddIceCandidateMsg{
		Candidate: candidate,
		Type:      candidateType,
	})
}

// UserInfo forwards the sender's profile details to the room partner.
func (r *Relay) UserInfo(roomID, senderID string, msg protocol.UserInfoMsg) {
	r.forward(roomID, senderID, protocol.TypeUserInfo, protocol.UserInfoMsg{
		Name:      msg.Name,
		Interests: msg.Interests,
		Location:  msg.Location,
	})
}

// Chat forwards a chat message through the sender's current room. Unlike the
// addressed messages there is no room id on the wire; a sender without a room
// is silently dropped.
func (r *Relay) Chat(senderID, message string) {
	rm := r.rooms.RoomOf(senderID)
	if rm == nil {
		metrics.DroppedMessages.WithLabelValues("no_room").Inc()
		logx.Debug("chat message dropped, sender has no room", "conn_id", senderID)
		return
	}
	r.forward(rm.ID, senderID, protocol.TypeChatMessage, protocol.ChatMessageMsg{
		Message: message,
	})
}

// forward resolves the other participant and delivers the frame. All failure
// paths degrade to silence per the relay contract.
func (r *Relay) forward(roomID, senderID, msgType string, payload interface{}) {
	target, ok := r.rooms.OtherParticipant(roomID, senderID)
	if !ok {
		reason := "not_in_room"
		if r.rooms.Get(roomID) == nil {
			reason = "unknown_room"
		}
		metrics.DroppedMessages.WithLabelValues(reason).Inc()
		logx.Debug("relay drop",
			"type", msgType, "room_id", roomID, "conn_id", senderID, "reason", reason)
		return
	}

	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		logx.Error(err, "relay failed to encode frame", "type", msgType, "room_id", roomID)
		return
	}

	r.out.Send(target, data)
	metrics.RelayedMessages.WithLabelValues(msgType).Inc()
}
