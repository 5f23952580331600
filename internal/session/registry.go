// Package session provides the connection registry: the binding from each
// live connection to its player identity, display name and current room.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotRegistered is returned when a connection has no session.
var ErrNotRegistered = errors.New("connection not registered")

// ErrAlreadyRegistered is returned when registering a connection twice.
var ErrAlreadyRegistered = errors.New("connection already registered")

// Conn is the registry's view of a live connection. Implementations must be
// comparable; identity is the interface value itself, never a derived key.
type Conn interface {
	// Send enqueues a serialized message without blocking.
	Send(data []byte) error
	// IsClosed reports whether the connection has stopped accepting messages.
	IsClosed() bool
}

// Session binds one connection to a player identity.
type Session struct {
	// ID identifies the connection for its whole lifetime.
	ID string
	// PlayerID is the current player identifier; a fresh one is minted per join.
	PlayerID string
	// Name is the display name.
	Name string
	// Color is the cosmetic player color.
	Color string
	// RoomID is the current room; empty means Unjoined.
	RoomID string
}

// InRoom reports whether the session is joined to a room.
func (s Session) InRoom() bool {
	return s.RoomID != ""
}

// Registry tracks every live connection's session and a per-room index of
// connections. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[Conn]*Session
	rooms    map[string]map[Conn]struct{}
	newID    func() string
}

// NewRegistry creates an empty Registry minting identifiers with uuid.
func NewRegistry() *Registry {
	return NewRegistryWithIDs(uuid.NewString)
}

// NewRegistryWithIDs creates an empty Registry using newID for identifiers.
//
// Precondition: newID must be non-nil and return unique values.
func NewRegistryWithIDs(newID func() string) *Registry {
	return &Registry{
		sessions: make(map[Conn]*Session),
		rooms:    make(map[string]map[Conn]struct{}),
		newID:    newID,
	}
}

// NewPlayerID mints a fresh opaque identifier.
func (r *Registry) NewPlayerID() string {
	return r.newID()
}

// Register creates an Unjoined session for conn with a fresh identifier.
//
// Precondition: conn must be non-nil.
// Postcondition: Returns a copy of the new session, or ErrAlreadyRegistered.
func (r *Registry) Register(conn Conn, name string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[conn]; exists {
		return Session{}, ErrAlreadyRegistered
	}
	id := r.newID()
	sess := &Session{ID: id, PlayerID: id, Name: name}
	r.sessions[conn] = sess
	return *sess, nil
}

// Lookup returns a copy of conn's session.
//
// Postcondition: Returns (session, true) if registered, or (Session{}, false).
func (r *Registry) Lookup(conn Conn) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Update applies fn to conn's session and keeps the room index consistent
// with any RoomID change. fn must not change ID.
//
// Postcondition: Returns the updated copy, or ErrNotRegistered.
func (r *Registry) Update(conn Conn, fn func(s *Session)) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return Session{}, ErrNotRegistered
	}
	oldRoom := sess.RoomID
	id := sess.ID
	fn(sess)
	sess.ID = id

	if sess.RoomID != oldRoom {
		r.unindex(oldRoom, conn)
		r.index(sess.RoomID, conn)
	}
	return *sess, nil
}

// Remove deletes conn's session. Only the first call for a connection
// reports true, so concurrent close and error paths clean up exactly once.
//
// Postcondition: Returns the removed session and true, or false if absent.
func (r *Registry) Remove(conn Conn) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	r.unindex(sess.RoomID, conn)
	delete(r.sessions, conn)
	return *sess, true
}

// Recipients returns the connections whose session names roomID.
//
// Postcondition: Returns a fresh slice (may be empty).
func (r *Registry) Recipients(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[roomID]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) index(roomID string, conn Conn) {
	if roomID == "" {
		return
	}
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[Conn]struct{})
		r.rooms[roomID] = set
	}
	set[conn] = struct{}{}
}

func (r *Registry) unindex(roomID string, conn Conn) {
	if roomID == "" {
		return
	}
	if set, ok := r.rooms[roomID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.rooms, roomID)
		}
	}
}
