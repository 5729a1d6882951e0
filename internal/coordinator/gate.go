package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/annotation"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
	"github.com/peercode-live/peercode-go-collab-server/internal/registry"
)

// Gate authorizes every mutating event against the connection's binding.
// A rejection stops the event before any store is touched and before
// anything is broadcast.
type Gate struct {
	registry    *registry.Registry
	annotations *annotation.Service
}

func NewGate(reg *registry.Registry, annotations *annotation.Service) *Gate {
	return &Gate{registry: reg, annotations: annotations}
}

// Authorize rejects with UNAUTHORIZED unless the connection is bound to
// exactly the claimed session.
func (g *Gate) Authorize(connID uuid.UUID, claimedSessionID string) (*registry.Binding, error) {
	binding, ok := g.registry.Binding(connID)
	if !ok {
		return nil, protocol.UnauthorizedError("connection has not joined a session")
	}
	if binding.SessionID != claimedSessionID {
		return nil, protocol.UnauthorizedError("connection is not bound to this session")
	}
	return binding, nil
}

// AuthorizeOwner additionally loads the target annotation and rejects
// with ACCESS_DENIED unless the bound user owns it.
func (g *Gate) AuthorizeOwner(ctx context.Context, connID uuid.UUID, claimedSessionID, annotationID string) (*registry.Binding, *database.Annotation, error) {
	binding, err := g.Authorize(connID, claimedSessionID)
	if err != nil {
		return nil, nil, err
	}

	target, err := g.annotations.Get(ctx, annotationID)
	if err != nil {
		return nil, nil, err
	}
	if target.UserID != binding.UserID {
		return nil, nil, protocol.AccessDeniedError("annotation belongs to another user")
	}
	return binding, target, nil
}
