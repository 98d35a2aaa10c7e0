package room

import (
	"errors"
	"testing"
)

func TestCreate_IndexesBothUsers(t *testing.T) {
	reg := NewRegistry()

	r, err := reg.Create("alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := reg.RoomOf("alice"); got == nil || got.ID != r.ID {
		t.Errorf("alice not indexed to room %s", r.ID)
	}
	if got := reg.RoomOf("bob"); got == nil || got.ID != r.ID {
		t.Errorf("bob not indexed to room %s", r.ID)
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 room, got %d", reg.Count())
	}
}

func TestCreate_MonotonicIDs(t *testing.T) {
	reg := NewRegistry()

	r1, _ := reg.Create("a", "b")
	reg.Destroy(r1.ID)
	r2, _ := reg.Create("c", "d")

	if r1.ID == r2.ID {
		t.Errorf("room ids must never be reused: %s", r1.ID)
	}
}

func TestCreate_RefusesDoubleOccupancy(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Create("alice", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := reg.Create("alice", "carol"); !errors.Is(err, ErrAlreadyPaired) {
		t.Errorf("expected ErrAlreadyPaired, got %v", err)
	}
	if _, err := reg.Create("carol", "bob"); !errors.Is(err, ErrAlreadyPaired) {
		t.Errorf("expected ErrAlreadyPaired, got %v", err)
	}

	// The failed calls must not leave partial index entries.
	if reg.RoomOf("carol") != nil {
		t.Error("failed create leaked an index entry for carol")
	}
	if reg.Count() != 1 {
		t.Errorf("expected 1 room after refused creates, got %d", reg.Count())
	}
}

func TestOtherParticipant(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("alice", "bob")

	if other, ok := reg.OtherParticipant(r.ID, "alice"); !ok || other != "bob" {
		t.Errorf("expected bob, got %q ok=%v", other, ok)
	}
	if other, ok := reg.OtherParticipant(r.ID, "bob"); !ok || other != "alice" {
		t.Errorf("expected alice, got %q ok=%v", other, ok)
	}

	if _, ok := reg.OtherParticipant(r.ID, "mallory"); ok {
		t.Error("non-participant must not resolve a partner")
	}
	if _, ok := reg.OtherParticipant("999", "alice"); ok {
		t.Error("unknown room must not resolve a partner")
	}
}

func TestDestroy_RemovesRoomAndIndex(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("alice", "bob")

	reg.Destroy(r.ID)

	if reg.Get(r.ID) != nil {
		t.Error("room still present after destroy")
	}
	if reg.RoomOf("alice") != nil || reg.RoomOf("bob") != nil {
		t.Error("index entries must be removed with the room")
	}

	// Duplicate teardown is a no-op.
	reg.Destroy(r.ID)

	// Both users can be paired again.
	if _, err := reg.Create("alice", "bob"); err != nil {
		t.Errorf("users should be free after destroy: %v", err)
	}
}
