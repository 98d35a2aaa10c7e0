// Package room owns the set of active two-party rooms and the user-to-room
// index. Rooms are fixed two-slot structures so "the other participant" is
// always an O(1) lookup and the two-party invariant is enforced by shape.
// Access is serialized by the session controller.
package room

import (
	"errors"
	"strconv"
)

// ErrAlreadyPaired is returned when room creation would put a user into a
// second room. It signals a protocol/state bug in the caller, never a
// user-facing condition.
var ErrAlreadyPaired = errors.New("room: user already occupies a room")

// Room is an active pairing. The participant order is arbitrary but fixed
// for the room's lifetime.
type Room struct {
	ID    string
	UserA string
	UserB string
}

// Other returns the participant that is not the given id, and whether the id
// is actually part of the room.
func (r *Room) Other(userID string) (string, bool) {
	switch userID {
	case r.UserA:
		return r.UserB, true
	case r.UserB:
		return r.UserA, true
	default:
		return "", false
	}
}

// Has reports whether the id is one of the room's two participants.
func (r *Room) Has(userID string) bool {
	return userID == r.UserA || userID == r.UserB
}

// Registry stores active rooms and the user-to-room index. Room ids come
// from a monotonic counter, so ids are never reused within a process
// lifetime and stale references cannot alias a newer room.
type Registry struct {
	rooms     map[string]*Room
	userRooms map[string]string
	nextID    uint64
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		userRooms: make(map[string]string),
		nextID:    1,
	}
}

// Create allocates a fresh room for the two users and indexes both. It
// refuses to create the room if either user already occupies one, leaving
// all state untouched.
func (reg *Registry) Create(userA, userB string) (*Room, error) {
	if _, ok := reg.userRooms[userA]; ok {
		return nil, ErrAlreadyPaired
	}
	if _, ok := reg.userRooms[userB]; ok {
		return nil, ErrAlreadyPaired
	}

	id := strconv.FormatUint(reg.nextID, 10)
	reg.nextID++

	r := &Room{ID: id, UserA: userA, UserB: userB}
	reg.rooms[id] = r
	reg.userRooms[userA] = id
	reg.userRooms[userB] = id
	return r, nil
}

// Get returns the room with the given id, or nil.
func (reg *Registry) Get(roomID string) *Room {
	return reg.rooms[roomID]
}

// RoomOf returns the room the user currently occupies, or nil.
func (reg *Registry) RoomOf(userID string) *Room {
	id, ok := reg.userRooms[userID]
	if !ok {
		return nil
	}
	return reg.rooms[id]
}

// OtherParticipant resolves the partner of userID within roomID. The second
// return is false if the room does not exist or the user is not in it.
func (reg *Registry) OtherParticipant(roomID, userID string) (string, bool) {
	r := reg.rooms[roomID]
	if r == nil {
		return "", false
	}
	return r.Other(userID)
}

// Destroy removes the room and both index entries in one step. Destroying an
// unknown room is a no-op so duplicate teardown calls stay harmless.
func (reg *Registry) Destroy(roomID string) {
	r, ok := reg.rooms[roomID]
	if !ok {
		return
	}
	delete(reg.rooms, roomID)
	delete(reg.userRooms, r.UserA)
	delete(reg.userRooms, r.UserB)
}

// Count returns the number of active rooms.
func (reg *Registry) Count() int {
	return len(reg.rooms)
}
