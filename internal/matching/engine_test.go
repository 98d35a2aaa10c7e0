package matching

import (
	"fmt"
	"testing"
	"time"

	"github.com/blinkpair/signal-server/internal/user"
)

// setupEngine creates an engine with a fresh registry and a long interest
// timeout so tests control timeout behavior by backdating join times.
func setupEngine(t *testing.T) (*Engine, *user.Registry) {
	t.Helper()
	users := user.NewRegistry()
	return NewEngine(users, DefaultInterestTimeout), users
}

// enqueueUser registers a user with the given interests, stamps a join time
// offset from now, and enqueues them.
func enqueueUser(t *testing.T, e *Engine, users *user.Registry, id string, interests []string, joinedAgo time.Duration) {
	t.Helper()
	users.Register(id)
	users.UpdateProfile(id, id, interests, "")
	users.StampQueueJoined(id, time.Now().Add(-joinedAgo))
	if !e.Enqueue(id) {
		t.Fatalf("failed to enqueue %s", id)
	}
}

func TestEnqueue_Idempotent(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", nil, 0)
	if e.Enqueue("alice") {
		t.Error("second enqueue of the same id should be a no-op")
	}
	if e.QueueLen() != 1 {
		t.Errorf("expected queue length 1, got %d", e.QueueLen())
	}
}

func TestDequeue_SafeWhenAbsent(t *testing.T) {
	e, _ := setupEngine(t)

	if e.Dequeue("ghost") {
		t.Error("dequeue of absent id should report false")
	}
}

func TestTryMatch_FewerThanTwoWaiting(t *testing.T) {
	e, users := setupEngine(t)

	if _, ok := e.TryMatch(); ok {
		t.Error("empty queue should not match")
	}

	enqueueUser(t, e, users, "alice", nil, 0)
	if _, ok := e.TryMatch(); ok {
		t.Error("single queued user should not match")
	}
	if !e.Queued("alice") {
		t.Error("failed match attempt must not consume the queued user")
	}
}

func TestTryMatch_FIFOFairness(t *testing.T) {
	e, users := setupEngine(t)

	// No shared interests, no timeout elapsed: oldest two pair up.
	enqueueUser(t, e, users, "alice", []string{"x"}, 3*time.Second)
	enqueueUser(t, e, users, "bob", []string{"y"}, 2*time.Second)
	enqueueUser(t, e, users, "carol", []string{"z"}, 1*time.Second)

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.Offerer != "alice" || pair.Answerer != "bob" {
		t.Errorf("expected alice+bob (oldest two), got %+v", pair)
	}
	if !e.Queued("carol") {
		t.Error("carol should still be waiting")
	}
}

func TestTryMatch_InterestPriority(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", []string{"x"}, 3*time.Second)
	enqueueUser(t, e, users, "bob", []string{"y"}, 2*time.Second)
	enqueueUser(t, e, users, "carol", []string{"x"}, 1*time.Second)

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.Offerer != "alice" || pair.Answerer != "carol" {
		t.Errorf("expected alice+carol (shared interest), got %+v", pair)
	}
	if !e.Queued("bob") {
		t.Error("bob should still be waiting")
	}
}

func TestTryMatch_InterestMatchIsCaseSensitive(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", []string{"Gaming"}, 3*time.Second)
	enqueueUser(t, e, users, "bob", []string{"music"}, 2*time.Second)
	enqueueUser(t, e, users, "carol", []string{"gaming"}, 1*time.Second)

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	// "Gaming" != "gaming", so alice falls back to the second-oldest.
	if pair.Offerer != "alice" || pair.Answerer != "bob" {
		t.Errorf("expected fallback pairing alice+bob, got %+v", pair)
	}
}

func TestTryMatch_TimeoutFallback(t *testing.T) {
	e, users := setupEngine(t)

	// Alice has exceeded the interest timeout: interests are ignored even
	// though carol would be a quality match.
	enqueueUser(t, e, users, "alice", []string{"x"}, DefaultInterestTimeout+5*time.Second)
	enqueueUser(t, e, users, "bob", []string{"y"}, 2*time.Second)
	enqueueUser(t, e, users, "carol", []string{"x"}, 1*time.Second)

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.Offerer != "alice" || pair.Answerer != "bob" {
		t.Errorf("expected timeout fallback alice+bob, got %+v", pair)
	}
}

func TestTryMatch_NoInterestsSkipsScoring(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", nil, 3*time.Second)
	enqueueUser(t, e, users, "bob", []string{"x"}, 2*time.Second)
	enqueueUser(t, e, users, "carol", []string{"x"}, 1*time.Second)

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.Offerer != "alice" || pair.Answerer != "bob" {
		t.Errorf("expected second-oldest pairing alice+bob, got %+v", pair)
	}
}

func TestTryMatch_TieBrokenByEnqueueOrder(t *testing.T) {
	e, users := setupEngine(t)

	// Identical join times: the earlier enqueue wins.
	stamp := time.Now().Add(-2 * time.Second)
	for _, id := range []string{"first", "second", "third"} {
		users.Register(id)
		users.UpdateProfile(id, id, nil, "")
		users.StampQueueJoined(id, stamp)
		e.Enqueue(id)
	}

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match")
	}
	if pair.Offerer != "first" || pair.Answerer != "second" {
		t.Errorf("expected enqueue-order tiebreak first+second, got %+v", pair)
	}
}

func TestTryMatch_ConsumesBothUsers(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", nil, 2*time.Second)
	enqueueUser(t, e, users, "bob", nil, 1*time.Second)

	if _, ok := e.TryMatch(); !ok {
		t.Fatal("expected a match")
	}
	if e.QueueLen() != 0 {
		t.Errorf("matched users must leave the queue, %d remain", e.QueueLen())
	}
	if e.Queued("alice") || e.Queued("bob") {
		t.Error("matched users still reported as queued")
	}
}

func TestMatchAll_Exhaustive(t *testing.T) {
	e, users := setupEngine(t)

	for i := 0; i < 5; i++ {
		enqueueUser(t, e, users, fmt.Sprintf("user-%d", i), nil, time.Duration(5-i)*time.Second)
	}

	pairs := e.MatchAll()
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs from 5 users, got %d", len(pairs))
	}
	if e.QueueLen() != 1 {
		t.Errorf("expected 1 leftover user, got %d", e.QueueLen())
	}
	if pairs[0].Offerer != "user-0" || pairs[0].Answerer != "user-1" {
		t.Errorf("unexpected first pair: %+v", pairs[0])
	}
	if pairs[1].Offerer != "user-2" || pairs[1].Answerer != "user-3" {
		t.Errorf("unexpected second pair: %+v", pairs[1])
	}
}

func TestTryMatch_DropsStaleEntries(t *testing.T) {
	e, users := setupEngine(t)

	enqueueUser(t, e, users, "alice", nil, 3*time.Second)
	enqueueUser(t, e, users, "bob", nil, 2*time.Second)
	enqueueUser(t, e, users, "carol", nil, 1*time.Second)

	// Bob's record vanished without a dequeue (disconnect race).
	users.Remove("bob")

	pair, ok := e.TryMatch()
	if !ok {
		t.Fatal("expected a match despite the stale entry")
	}
	if pair.Offerer != "alice" || pair.Answerer != "carol" {
		t.Errorf("expected alice+carol, got %+v", pair)
	}
	if e.Queued("bob") {
		t.Error("stale entry should have been dropped from the queue")
	}
}

func TestSharesInterest(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want bool
	}{
		{"overlap", []string{"a", "b"}, []string{"b", "c"}, true},
		{"disjoint", []string{"a"}, []string{"b"}, false},
		{"empty left", nil, []string{"a"}, false},
		{"empty right", []string{"a"}, nil, false},
		{"both empty", nil, nil, false},
		{"case sensitive", []string{"Gaming"}, []string{"gaming"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sharesInterest(tc.a, tc.b); got != tc.want {
				t.Errorf("sharesInterest(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
