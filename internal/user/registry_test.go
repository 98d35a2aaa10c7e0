package user

import (
	"testing"
	"time"
)

func TestRegister_DefaultsAndIdempotence(t *testing.T) {
	r := NewRegistry()

	u := r.Register("conn-1")
	if u.Name != DefaultName {
		t.Errorf("expected default name %q, got %q", DefaultName, u.Name)
	}
	if !u.QueueJoinedAt.IsZero() {
		t.Error("queue-join time should be unset before profile submission")
	}

	r.UpdateProfile("conn-1", "alice", []string{"gaming"}, "Berlin")

	again := r.Register("conn-1")
	if again.Name != "alice" {
		t.Errorf("re-register overwrote existing record: name=%q", again.Name)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 user, got %d", r.Count())
	}
}

func TestUpdateProfile_StampsQueueJoined(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")

	before := time.Now()
	if !r.UpdateProfile("conn-1", "bob", []string{"music"}, "") {
		t.Fatal("update should succeed for a registered connection")
	}

	u := r.Get("conn-1")
	if u.QueueJoinedAt.Before(before) {
		t.Error("queue-join time not stamped by profile update")
	}
	if u.Name != "bob" || len(u.Interests) != 1 || u.Interests[0] != "music" {
		t.Errorf("profile not applied: %+v", u)
	}
}

func TestUpdateProfile_EmptyNameKeepsDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")

	r.UpdateProfile("conn-1", "", nil, "")
	if got := r.Get("conn-1").Name; got != DefaultName {
		t.Errorf("empty name should keep %q, got %q", DefaultName, got)
	}
}

func TestUpdateProfile_UnknownConnection(t *testing.T) {
	r := NewRegistry()
	if r.UpdateProfile("ghost", "x", nil, "") {
		t.Error("update should report false for unknown connection")
	}
}

func TestRemove_NoOpWhenAbsent(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")

	r.Remove("conn-1")
	r.Remove("conn-1") // duplicate disconnect notification

	if r.Get("conn-1") != nil {
		t.Error("record should be gone after remove")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestStampQueueJoined(t *testing.T) {
	r := NewRegistry()
	r.Register("conn-1")
	r.UpdateProfile("conn-1", "alice", nil, "")

	first := r.Get("conn-1").QueueJoinedAt
	later := first.Add(5 * time.Second)
	r.StampQueueJoined("conn-1", later)

	if got := r.Get("conn-1").QueueJoinedAt; !got.Equal(later) {
		t.Errorf("expected stamped time %v, got %v", later, got)
	}

	// Unknown id must not panic.
	r.StampQueueJoined("ghost", time.Now())
}
