// Package matching owns the waiting queue and the pairing algorithm. Like the
// other core registries it is not internally synchronized; the session
// controller serializes all access.
package matching

// WaitQueue is the ordered set of connection ids currently seeking a partner.
// Insertion order is significant (oldest-first fairness) and duplicates are
// forbidden.
type WaitQueue struct {
	ids     []string
	members map[string]struct{}
}

// NewWaitQueue creates an empty queue.
func NewWaitQueue() *WaitQueue {
	return &WaitQueue{members: make(map[string]struct{})}
}

// Enqueue appends an id unless it is already queued. Re-enqueueing is a
// no-op so duplicate join requests cannot reorder the queue.
func (q *WaitQueue) Enqueue(id string) bool {
	if _, ok := q.members[id]; ok {
		return false
	}
	q.ids = append(q.ids, id)
	q.members[id] = struct{}{}
	return true
}

// Dequeue removes an id wherever it appears. Safe to call when absent.
func (q *WaitQueue) Dequeue(id string) bool {
	if _, ok := q.members[id]; !ok {
		return false
	}
	delete(q.members, id)
	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether an id is queued.
func (q *WaitQueue) Contains(id string) bool {
	_, ok := q.members[id]
	return ok
}

// Len returns the number of queued ids.
func (q *WaitQueue) Len() int {
	return len(q.ids)
}

// IDs returns the queued ids in insertion order. The returned slice is a
// copy and safe to iterate while the queue mutates.
func (q *WaitQueue) IDs() []string {
	out := make([]string, len(q.ids))
	copy(out, q.ids)
	return out
}
