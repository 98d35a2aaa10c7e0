package matching

import (
	"time"

	"github.com/blinkpair/signal-server/internal/logx"
	"github.com/blinkpair/signal-server/internal/user"
)

// DefaultInterestTimeout is how long a queued user keeps interest-based
// pairing priority. Once exceeded, the matcher pairs the user with whoever
// has waited longest regardless of interests.
const DefaultInterestTimeout = 10 * time.Second

// Pair is a successful pairing decision. Offerer is the longer-waiting user;
// it will be told to create the SDP offer.
type Pair struct {
	Offerer  string
	Answerer string
}

// Engine decides which two waiting users become a room. It owns the wait
// queue and reads profiles from the connection registry.
type Engine struct {
	queue           *WaitQueue
	users           *user.Registry
	interestTimeout time.Duration
}

// NewEngine creates an engine over the given registry. A non-positive
// timeout falls back to DefaultInterestTimeout.
func NewEngine(users *user.Registry, interestTimeout time.Duration) *Engine {
	if interestTimeout <= 0 {
		interestTimeout = DefaultInterestTimeout
	}
	return &Engine{
		queue:           NewWaitQueue(),
		users:           users,
		interestTimeout: interestTimeout,
	}
}

// Enqueue adds a user to the queue; a no-op when already queued. The caller
// must have stamped the user's queue-join time beforehand.
func (e *Engine) Enqueue(id string) bool {
	return e.queue.Enqueue(id)
}

// Dequeue removes a user from the queue; safe when absent.
func (e *Engine) Dequeue(id string) bool {
	return e.queue.Dequeue(id)
}

// Queued reports whether a user is currently waiting.
func (e *Engine) Queued(id string) bool {
	return e.queue.Contains(id)
}

// QueueLen returns the number of waiting users.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// TryMatch runs one pass of the pairing algorithm:
//
//  1. With fewer than two waiting users there is no match.
//  2. The longest-waiting user is always consumed first (ties broken by
//     enqueue order).
//  3. If that user has exceeded the interest timeout or has no interests,
//     it is paired with the second-longest-waiting user.
//  4. Otherwise the remaining queue is scanned in order for the first user
//     sharing at least one interest (case-sensitive exact match).
//  5. No shared interest found: fall back to the second-longest-waiting user.
//
// Both selected users are removed from the queue. Greedy and single-pass,
// so not globally optimal, but deterministic and fair: match quality degrades
// to plain FIFO as wait time grows.
func (e *Engine) TryMatch() (Pair, bool) {
	if e.queue.Len() < 2 {
		return Pair{}, false
	}

	oldest := e.selectOldest("")
	if oldest == nil {
		return Pair{}, false
	}

	var partner *user.User
	if time.Since(oldest.QueueJoinedAt) > e.interestTimeout || len(oldest.Interests) == 0 {
		partner = e.selectOldest(oldest.ID)
	} else {
		partner = e.selectByInterest(oldest)
		if partner == nil {
			partner = e.selectOldest(oldest.ID)
		}
	}
	if partner == nil {
		return Pair{}, false
	}

	e.queue.Dequeue(oldest.ID)
	e.queue.Dequeue(partner.ID)

	return Pair{Offerer: oldest.ID, Answerer: partner.ID}, true
}

// MatchAll drains the queue of every matchable pair. Pairing is exhaustive
// per queue mutation, so the queue never holds two users who could be paired.
func (e *Engine) MatchAll() []Pair {
	var pairs []Pair
	for {
		pair, ok := e.TryMatch()
		if !ok {
			return pairs
		}
		pairs = append(pairs, pair)
	}
}

// selectOldest returns the queued user with the earliest queue-join time,
// skipping the given id. Ties resolve to the earliest enqueued. Queued ids
// without a registry record are stale (disconnect raced the queue) and are
// dropped on sight.
func (e *Engine) selectOldest(skip string) *user.User {
	var oldest *user.User
	for _, id := range e.queue.IDs() {
		if id == skip {
			continue
		}
		u := e.users.Get(id)
		if u == nil {
			logx.Warn("dropping stale queue entry", "conn_id", id)
			e.queue.Dequeue(id)
			continue
		}
		if oldest == nil || u.QueueJoinedAt.Before(oldest.QueueJoinedAt) {
			oldest = u
		}
	}
	return oldest
}

// selectByInterest scans the queue in order and returns the first user
// sharing at least one interest with the candidate.
func (e *Engine) selectByInterest(candidate *user.User) *user.User {
	for _, id := range e.queue.IDs() {
		if id == candidate.ID {
			continue
		}
		u := e.users.Get(id)
		if u == nil {
			continue
		}
		if sharesInterest(candidate.Interests, u.Interests) {
			return u
		}
	}
	return nil
}

// sharesInterest reports whether the two interest lists have at least one
// exact, case-sensitive string in common.
func sharesInterest(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := set[tag]; ok {
			return true
		}
	}
	return false
}
