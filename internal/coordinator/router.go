package coordinator

import (
	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
	"github.com/peercode-live/peercode-go-collab-server/internal/registry"
)

// Sender delivers an already-encoded frame to one live connection. The
// transport layer implements it; tests substitute a recorder.
type Sender interface {
	Send(connID uuid.UUID, message []byte)
}

// Router fans an event out to a session's room. Encoding happens once per
// broadcast; a failed delivery is the transport's problem, never the
// caller's.
type Router struct {
	registry *registry.Registry
	sender   Sender
}

func NewRouter(reg *registry.Registry, sender Sender) *Router {
	return &Router{registry: reg, sender: sender}
}

func (r *Router) encode(event string, payload any) ([]byte, bool) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		logger.ErrorF("Fail to encode %s event, details: %v", event, err)
		return nil, false
	}
	return frame, true
}

// ToConn sends to a single connection.
func (r *Router) ToConn(connID uuid.UUID, event string, payload any) {
	frame, ok := r.encode(event, payload)
	if !ok {
		return
	}
	r.sender.Send(connID, frame)
}

// ToRoom delivers to every member of the session's room, the acting
// connection included.
func (r *Router) ToRoom(sessionID, event string, payload any) {
	frame, ok := r.encode(event, payload)
	if !ok {
		return
	}
	for _, connID := range r.registry.Room(sessionID) {
		r.sender.Send(connID, frame)
	}
}

// ToRoomExcept delivers to every room member other than except.
func (r *Router) ToRoomExcept(sessionID string, except uuid.UUID, event string, payload any) {
	frame, ok := r.encode(event, payload)
	if !ok {
		return
	}
	for _, connID := range r.registry.Room(sessionID) {
		if connID == except {
			continue
		}
		r.sender.Send(connID, frame)
	}
}
