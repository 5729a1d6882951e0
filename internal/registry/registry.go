// Package registry tracks live connections, their single (user, session)
// binding, per-session room membership and presence state. It is owned by
// the coordinator instance that created it; nothing here is persisted.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
)

var AlreadyBoundError = errors.New("connection is already bound to another session")

// Binding is the immutable (user, session) pair a connection acquired at
// join time. It only goes away with the connection.
type Binding struct {
	SessionID string
	UserID    string
	BoundAt   time.Time
}

type connState struct {
	binding       *Binding
	lastHeartbeat time.Time
}

type Registry struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]*connState
	rooms     map[string]map[uuid.UUID]struct{}
	userConns map[string]uuid.UUID
	typing    map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[uuid.UUID]*connState),
		rooms:     make(map[string]map[uuid.UUID]struct{}),
		userConns: make(map[string]uuid.UUID),
		typing:    make(map[string]map[string]struct{}),
	}
}

// Register records a freshly connected, not yet bound connection.
func (r *Registry) Register(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &connState{lastHeartbeat: time.Now()}
	logger.DebugF("[%s] Connection registered", connID)
}

// Bind attaches the connection to exactly one (user, session) pair and
// adds it to the session's room. Binding twice with the same pair is a
// no-op; binding to a different pair is refused. When a user opens a
// second connection the newest one wins the user lookup.
func (r *Registry) Bind(connID uuid.UUID, sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		state = &connState{lastHeartbeat: time.Now()}
		r.conns[connID] = state
	}

	if state.binding != nil {
		if state.binding.SessionID == sessionID && state.binding.UserID == userID {
			return nil
		}
		return AlreadyBoundError
	}

	state.binding = &Binding{SessionID: sessionID, UserID: userID, BoundAt: time.Now()}

	room, ok := r.rooms[sessionID]
	if !ok {
		room = make(map[uuid.UUID]struct{})
		r.rooms[sessionID] = room
	}
	room[connID] = struct{}{}
	r.userConns[userID] = connID

	logger.InfoF("[%s] Connection bound: session_id=%s, user_id=%s", connID, sessionID, userID)
	return nil
}

// Unbind removes the connection and its room membership, returning the
// binding it held. An empty room entry is dropped entirely; the persisted
// session is untouched.
func (r *Registry) Unbind(connID uuid.UUID) (*Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	delete(r.conns, connID)

	binding := state.binding
	if binding == nil {
		return nil, false
	}

	if room, ok := r.rooms[binding.SessionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, binding.SessionID)
			delete(r.typing, binding.SessionID)
		}
	}
	if current, ok := r.userConns[binding.UserID]; ok && current == connID {
		delete(r.userConns, binding.UserID)
	}
	if typingSet, ok := r.typing[binding.SessionID]; ok {
		delete(typingSet, binding.UserID)
	}

	logger.InfoF("[%s] Connection unbound: session_id=%s, user_id=%s", connID, binding.SessionID, binding.UserID)
	return binding, true
}

func (r *Registry) Binding(connID uuid.UUID) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.conns[connID]
	if !ok || state.binding == nil {
		return nil, false
	}
	return state.binding, true
}

// Room returns the connection ids currently bound to the session.
func (r *Registry) Room(sessionID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[sessionID]
	members := make([]uuid.UUID, 0, len(room))
	for connID := range room {
		members = append(members, connID)
	}
	return members
}

func (r *Registry) RoomSize(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[sessionID])
}

// SetTyping toggles the user's membership in the session's typing set and
// reports whether anything changed, so the caller only broadcasts deltas.
func (r *Registry) SetTyping(sessionID, userID string, isTyping bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	typingSet, ok := r.typing[sessionID]
	if !ok {
		if !isTyping {
			return false
		}
		typingSet = make(map[string]struct{})
		r.typing[sessionID] = typingSet
	}

	_, present := typingSet[userID]
	if isTyping == present {
		return false
	}
	if isTyping {
		typingSet[userID] = struct{}{}
	} else {
		delete(typingSet, userID)
	}
	return true
}

// Heartbeat resets the connection's liveness timestamp. Liveness is
// informational only; connections are never evicted for missing it.
func (r *Registry) Heartbeat(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.conns[connID]; ok {
		state.lastHeartbeat = time.Now()
	}
}

func (r *Registry) LastHeartbeat(connID uuid.UUID) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.conns[connID]
	if !ok {
		return time.Time{}, false
	}
	return state.lastHeartbeat, true
}
