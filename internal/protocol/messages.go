// Package protocol defines the WebSocket message types exchanged between the
// client and the signaling server. Every frame is a JSON envelope with a type
// discriminator and an optional payload object, e.g.
//
//	{"type": "offer", "payload": {"sdp": "...", "roomId": "7"}}
//
// Payloads are kept as raw JSON in the envelope and decoded into a concrete
// struct once the type is known.
package protocol

import (
	"encoding/json"
	"fmt"
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

// Server -> Client message types. Offer, answer, ICE candidate, user-info and
// chat messages reuse the inbound constants since they are relayed under the
// same name.
const (
	TypeLobby         = "lobby"
	TypeSendOffer     = "send-offer"
	TypePeerLeft      = "peer-left"
	TypeSearchStopped = "search-stopped"
)

// Negotiation roles assigned to the two peers of a room. The longer-waiting
// peer creates the SDP offer, the other answers.
const (
	RoleOfferer  = "offerer"
	RoleAnswerer = "answerer"
)

// Envelope is the outer frame structure. Payload stays raw until the type
// discriminator has been inspected.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRoomMsg enters the waiting queue with the user's profile.
type JoinRoomMsg struct {
	Name      string   `json:"name"`
	Interests []string `json:"interests"`
	Location  string   `json:"location"`
}

// OfferMsg carries an SDP offer. Inbound it is addressed by room id; outbound
// it is delivered verbatim to the other participant.
type OfferMsg struct {
	SDP    string `json:"sdp"`
	RoomID string `json:"roomId"`
}

// AnswerMsg carries an SDP answer, addressed like OfferMsg.
type AnswerMsg struct {
	SDP    string `json:"sdp"`
	RoomID string `json:"roomId"`
}

// AddIceCandidateMsg carries an ICE candidate. Candidate is opaque JSON the
// server never inspects. Type tags which of the receiving peer's connection
// objects the candidate belongs to ("sender" or "receiver") and is passed
// through verbatim.
type AddIceCandidateMsg struct {
	Candidate json.RawMessage `json:"candidate"`
	RoomID    string          `json:"roomId,omitempty"`
	Type      string          `json:"type"`
}

// UserInfoMsg shares profile details with the room partner. RoomID is only
// present inbound; the relayed copy omits it.
type UserInfoMsg struct {
	RoomID    string   `json:"roomId,omitempty"`
	Name      string   `json:"name"`
	Interests []string `json:"interests"`
	Location  string   `json:"location"`
}

// ChatMessageMsg is a text message relayed through the sender's current room.
type ChatMessageMsg struct {
	Message string `json:"message"`
}

// SendOfferMsg notifies a peer that it has been paired. Role tells the peer
// which side of the WebRTC negotiation it takes.
type SendOfferMsg struct {
	RoomID string `json:"roomId"`
	Role   string `json:"role"`
}

// ParseClientMessage decodes raw frame bytes into a typed client message.
// It returns the message type, the decoded payload struct (nil for payload-less
// types), and an error for malformed frames or unknown types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse envelope: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("protocol: missing or empty \"type\" field")
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinRoom:
		var m JoinRoomMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeOffer:
		var m OfferMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeAnswer:
		var m AnswerMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeAddIceCandidate:
		var m AddIceCandidateMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeUserInfo:
		var m UserInfoMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeChatMessage:
		var m ChatMessageMsg
		err = unmarshalPayload(env.Payload, &m)
		msg = m
	case TypeSkipUser, TypeStopSearching:
		msg = nil
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage builds the JSON bytes for a server-to-client frame. A nil
// payload produces an envelope with only the type field.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: msgType}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: failed to marshal %q payload: %w", msgType, err)
		}
		env.Payload = raw
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q envelope: %w", msgType, err)
	}
	return out, nil
}

// unmarshalPayload decodes a payload object, treating a missing payload as an
// empty object so payload fields simply zero out.
func unmarshalPayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
