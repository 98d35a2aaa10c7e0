// Package user tracks every currently connected user and their profile. The
// registry is one of the three core state owners (users, wait queue, rooms)
// that are mutated only inside the session controller's critical section, so
// it carries no locking of its own.
package user

import "time"

// DefaultName is assigned until the client submits a profile.
const DefaultName = "anonymous"

// User is the record kept for one connected transport session.
type User struct {
	ID        string   // connection id, stable for the connection's lifetime
	Name      string   // display name, DefaultName until set
	Interests []string // optional tags used for match scoring
	Location  string   // free-text, informational only

	// QueueJoinedAt is stamped when the user enters the waiting queue and
	// drives both matcher ordering and the interest-match timeout.
	QueueJoinedAt time.Time
}

// Registry holds the records of all connected users, keyed by connection id.
type Registry struct {
	users map[string]*User
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Register creates a default-named record for a new connection. Registering
// an id that already exists returns the existing record unchanged.
func (r *Registry) Register(connID string) *User {
	if u, ok := r.users[connID]; ok {
		return u
	}
	u := &User{ID: connID, Name: DefaultName}
	r.users[connID] = u
	return u
}

// UpdateProfile overwrites the mutable profile fields and stamps the
// queue-join time, since profile submission doubles as the join request.
// Returns false if the connection is unknown.
func (r *Registry) UpdateProfile(connID, name string, interests []string, location string) bool {
	u, ok := r.users[connID]
	if !ok {
		return false
	}
	if name != "" {
		u.Name = name
	}
	u.Interests = interests
	u.Location = location
	u.QueueJoinedAt = time.Now()
	return true
}

// StampQueueJoined refreshes the queue-join time, used when a user re-enters
// the queue after skipping a partner.
func (r *Registry) StampQueueJoined(connID string, t time.Time) {
	if u, ok := r.users[connID]; ok {
		u.QueueJoinedAt = t
	}
}

// Get returns the record for a connection id, or nil if not registered.
func (r *Registry) Get(connID string) *User {
	return r.users[connID]
}

// Remove deletes the record. Removing an absent id is a no-op so duplicate
// disconnect notifications stay harmless.
func (r *Registry) Remove(connID string) {
	delete(r.users, connID)
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	return len(r.users)
}
