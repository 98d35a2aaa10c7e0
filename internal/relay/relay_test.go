package relay

import (
	"encoding/json"
	"testing"

	"github.com/blinkpair/signal-server/internal/protocol"
	"github.com/blinkpair/signal-server/internal/room"
)

// recorder captures outbound frames per connection id.
type recorder struct {
	sent map[string][][]byte
}

func newRecorder() *recorder {
	return &recorder{sent: make(map[string][][]byte)}
}

func (r *recorder) Send(connID string, data []byte) {
	r.sent[connID] = append(r.sent[connID], data)
}

func (r *recorder) only(t *testing.T, connID string) protocol.Envelope {
	t.Helper()
	frames := r.sent[connID]
	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 frame for %s, got %d", connID, len(frames))
	}
	var env protocol.Envelope
	if err := json.Unmarshal(frames[0], &env); err != nil {
		t.Fatalf("frame is not a valid envelope: %v", err)
	}
	return env
}

func setupRelay(t *testing.T) (*Relay, *room.Registry, *recorder) {
	t.Helper()
	rooms := room.NewRegistry()
	rec := newRecorder()
	return New(rooms, rec), rooms, rec
}

func TestOffer_DeliveredToOtherParticipantOnly(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")

	r.Offer(rm.ID, "alice", protocol.OfferMsg{SDP: "v=0 offer"})

	env := rec.only(t, "bob")
	if env.Type != protocol.TypeOffer {
		t.Errorf("unexpected type: %s", env.Type)
	}
	var offer protocol.OfferMsg
	if err := json.Unmarshal(env.Payload, &offer); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if offer.SDP != "v=0 offer" || offer.RoomID != rm.ID {
		t.Errorf("offer altered in transit: %+v", offer)
	}

	if len(rec.sent["alice"]) != 0 {
		t.Error("sender must not receive its own offer")
	}
}

func TestAnswer_DeliveredToOtherParticipant(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")

	r.Answer(rm.ID, "bob", protocol.AnswerMsg{SDP: "v=0 answer"})

	env := rec.only(t, "alice")
	if env.Type != protocol.TypeAnswer {
		t.Errorf("unexpected type: %s", env.Type)
	}
}

func TestIceCandidate_TypeTagPassthrough(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")

	candidate := json.RawMessage(`{"candidate":"candidate:42","sdpMLineIndex":0}`)
	r.IceCandidate(rm.ID, "alice", candidate, "receiver")

	env := rec.only(t, "bob")
	var ice protocol.AddIceCandidateMsg
	if err := json.Unmarshal(env.Payload, &ice); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if ice.Type != "receiver" {
		t.Errorf("sender/receiver tag not passed through: %s", ice.Type)
	}
	if string(ice.Candidate) != string(candidate) {
		t.Errorf("candidate altered: %s", ice.Candidate)
	}
	if ice.RoomID != "" {
		t.Errorf("relayed candidate should omit room id, got %q", ice.RoomID)
	}
}

func TestUserInfo_RelayedWithoutRoomID(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")

	r.UserInfo(rm.ID, "alice", protocol.UserInfoMsg{
		Name:      "alice",
		Interests: []string{"gaming"},
		Location:  "Berlin",
	})

	env := rec.only(t, "bob")
	var info protocol.UserInfoMsg
	if err := json.Unmarshal(env.Payload, &info); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if info.Name != "alice" || info.Location != "Berlin" {
		t.Errorf("user info altered: %+v", info)
	}
	if info.RoomID != "" {
		t.Errorf("relayed user info should omit room id, got %q", info.RoomID)
	}
}

func TestChat_ResolvedThroughSendersRoom(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rooms.Create("alice", "bob")

	r.Chat("alice", "hello there")

	env := rec.only(t, "bob")
	if env.Type != protocol.TypeChatMessage {
		t.Errorf("unexpected type: %s", env.Type)
	}
	var chat protocol.ChatMessageMsg
	if err := json.Unmarshal(env.Payload, &chat); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if chat.Message != "hello there" {
		t.Errorf("message altered: %s", chat.Message)
	}
}

func TestChat_DroppedWithoutRoom(t *testing.T) {
	r, _, rec := setupRelay(t)

	r.Chat("loner", "anyone?")

	if len(rec.sent) != 0 {
		t.Errorf("chat without a room must be dropped, sent=%v", rec.sent)
	}
}

func TestForward_DropsOnStaleRoom(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")
	rooms.Destroy(rm.ID)

	r.Offer(rm.ID, "alice", protocol.OfferMsg{SDP: "late"})

	if len(rec.sent) != 0 {
		t.Errorf("message to destroyed room must be dropped, sent=%v", rec.sent)
	}
}

func TestForward_DropsForNonParticipant(t *testing.T) {
	r, rooms, rec := setupRelay(t)
	rm, _ := rooms.Create("alice", "bob")

	r.Offer(rm.ID, "mallory", protocol.OfferMsg{SDP: "spoof"})

	if len(rec.sent) != 0 {
		t.Errorf("message from non-participant must be dropped, sent=%v", rec.sent)
	}
}
