package socket

import (
	"log"
	"sync"
)

// Emitter is the slice of a socket connection the registry and router
// need. socketio.Conn satisfies it; tests use fakes.
type Emitter interface {
	ID() string
	Emit(event string, args ...interface{})
}

// SessionRegistry maps a logical user to the set of live socket
// connections authenticated as that user. A user with several tabs or
// devices holds several handles; a handle belongs to at most one user.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Emitter // userID -> socketID -> conn
	owners   map[string]string             // socketID -> userID
}

// NewSessionRegistry returns an empty registry. It is an explicit
// instance owned by the serving process, not a package singleton.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]map[string]Emitter),
		owners:   make(map[string]string),
	}
}

// Register binds a connection to a user. Registering the same handle
// for the same user again is a no-op; re-authenticating as a different
// user moves the handle.
func (r *SessionRegistry) Register(userID string, conn Emitter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	socketID := conn.ID()
	if owner, ok := r.owners[socketID]; ok {
		if owner == userID {
			return
		}
		r.removeLocked(socketID, owner)
	}

	if _, ok := r.sessions[userID]; !ok {
		r.sessions[userID] = make(map[string]Emitter)
	}
	r.sessions[userID][socketID] = conn
	r.owners[socketID] = userID
	log.Printf("✅ Socket %s registered for user %s (%d live)", socketID, userID, len(r.sessions[userID]))
}

// Unregister drops a handle from whichever user owns it. Unknown
// handles are a no-op, not an error: reconnects and drops arrive out
// of order.
func (r *SessionRegistry) Unregister(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[socketID]
	if !ok {
		return
	}
	r.removeLocked(socketID, owner)
	log.Printf("👋 Socket %s unregistered for user %s", socketID, owner)
}

// LiveHandlesFor returns the user's current live connections, possibly
// empty.
func (r *SessionRegistry) LiveHandlesFor(userID string) []Emitter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.sessions[userID]
	handles := make([]Emitter, 0, len(conns))
	for _, conn := range conns {
		handles = append(handles, conn)
	}
	return handles
}

// IsOnline reports whether the user has at least one live connection.
func (r *SessionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// UserFor returns the user a handle is authenticated as, if any.
func (r *SessionRegistry) UserFor(socketID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[socketID]
	return owner, ok
}

func (r *SessionRegistry) removeLocked(socketID, owner string) {
	delete(r.owners, socketID)
	if conns, ok := r.sessions[owner]; ok {
		delete(conns, socketID)
		if len(conns) == 0 {
			delete(r.sessions, owner)
		}
	}
}
