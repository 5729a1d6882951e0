// Package coordinator receives inbound connection events, authorizes
// them, drives the session and annotation services and fans the results
// out to the session's room. It owns the connection state machine:
// Unauthenticated until a successful join, Joined until leave or
// disconnect.
package coordinator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/annotation"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
	"github.com/peercode-live/peercode-go-collab-server/internal/registry"
	"github.com/peercode-live/peercode-go-collab-server/internal/session"
	"github.com/peercode-live/peercode-go-collab-server/internal/user"
)

type Coordinator struct {
	registry    *registry.Registry
	sessions    *session.Service
	annotations *annotation.Service
	users       user.Service
	gate        *Gate
	router      *Router
}

func New(reg *registry.Registry, sessions *session.Service, annotations *annotation.Service, users user.Service, sender Sender) *Coordinator {
	return &Coordinator{
		registry:    reg,
		sessions:    sessions,
		annotations: annotations,
		users:       users,
		gate:        NewGate(reg, annotations),
		router:      NewRouter(reg, sender),
	}
}

// HandleConnect registers a fresh, unauthenticated connection.
func (c *Coordinator) HandleConnect(connID uuid.UUID) {
	c.registry.Register(connID)
}

// HandleMessage dispatches one inbound frame. Every rejection produces
// exactly one error event to the offending connection and nothing else;
// no handler failure terminates the connection.
func (c *Coordinator) HandleMessage(ctx context.Context, connID uuid.UUID, message []byte) {
	event, data, err := protocol.DecodeEnvelope(message)
	if err != nil {
		logger.WarnF("[%s] Discarding malformed frame, details: %v", connID, err)
		c.sendError(connID, protocol.ValidationError("malformed message frame"))
		return
	}

	logger.DebugF("[%s] Receive %s event", connID, event)

	switch event {
	case protocol.EventHeartbeat:
		c.handleHeartbeat(connID)
	case protocol.EventCreateSession:
		c.handleCreateSession(ctx, connID, data)
	case protocol.EventJoinSession:
		c.handleJoinSession(ctx, connID, data)
	case protocol.EventLeaveSession:
		c.handleLeaveSession(ctx, connID, data)
	case protocol.EventAddAnnotation:
		c.handleAddAnnotation(ctx, connID, data)
	case protocol.EventUpdateAnnotation:
		c.handleUpdateAnnotation(ctx, connID, data)
	case protocol.EventDeleteAnnotation:
		c.handleDeleteAnnotation(ctx, connID, data)
	case protocol.EventHighlightCode:
		c.handleHighlightCode(ctx, connID, data)
	case protocol.EventTypingIndicator:
		c.handleTypingIndicator(connID, data)
	case protocol.EventRequestSessionState:
		c.handleRequestSessionState(ctx, connID, data)
	default:
		logger.WarnF("[%s] %s event has not been supported", connID, event)
		c.sendError(connID, protocol.ValidationError("unknown event "+event))
	}
}

// HandleDisconnect is the transport-close path: leave runs synchronously
// against the store before the registry membership is released, then the
// refreshed participant list goes to the remaining room members. No
// client observes a stale participant after a disconnect it could see.
func (c *Coordinator) HandleDisconnect(ctx context.Context, connID uuid.UUID) {
	binding, bound := c.registry.Binding(connID)
	if !bound {
		c.registry.Unbind(connID)
		logger.DebugF("[%s] Unauthenticated connection closed", connID)
		return
	}

	updated, err := c.sessions.Leave(ctx, binding.SessionID, binding.UserID)
	if err != nil {
		logger.ErrorF("[%s] Fail to leave session %s on disconnect, details: %v", connID, binding.SessionID, err)
	}

	c.registry.Unbind(connID)

	if updated != nil {
		c.router.ToRoom(binding.SessionID, protocol.EventUserLeft, protocol.UserLeftPayload{
			UserID:       binding.UserID,
			Participants: c.resolveParticipants(ctx, updated),
		})
	}
}

// BroadcastAIAnalysis is the injection surface for the external analysis
// subsystem; delivery is room-wide, sender included.
func (c *Coordinator) BroadcastAIAnalysis(sessionID string, suggestions json.RawMessage) {
	c.router.ToRoom(sessionID, protocol.EventAIAnalysis, protocol.AIAnalysisPayload{
		SessionID:   sessionID,
		Suggestions: suggestions,
	})
}

// BroadcastDebateArguments mirrors BroadcastAIAnalysis for the debate
// subsystem.
func (c *Coordinator) BroadcastDebateArguments(sessionID string, arguments json.RawMessage) {
	c.router.ToRoom(sessionID, protocol.EventDebateArguments, protocol.DebateArgumentsPayload{
		SessionID: sessionID,
		Arguments: arguments,
	})
}

func (c *Coordinator) sendError(connID uuid.UUID, err error) {
	coordErr := protocol.AsCoordinatorError(err)
	c.router.ToConn(connID, protocol.EventError, protocol.ErrorPayload{
		Message: coordErr.Message,
		Code:    coordErr.Code,
	})
}

func decode[T any](data []byte) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, protocol.ValidationError("missing event payload")
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, protocol.ValidationError("malformed event payload")
	}
	return payload, nil
}

func (c *Coordinator) handleHeartbeat(connID uuid.UUID) {
	c.registry.Heartbeat(connID)
	c.router.ToConn(connID, protocol.EventHeartbeatAck, nil)
}

func (c *Coordinator) handleCreateSession(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.CreateSessionPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	if _, bound := c.registry.Binding(connID); bound {
		c.sendError(connID, protocol.UnauthorizedError("connection is already in a session"))
		return
	}

	creator, err := c.users.GetUserByID(ctx, payload.UserID)
	if err != nil {
		logger.ErrorF("[%s] Fail to resolve user %s, details: %v", connID, payload.UserID, err)
		c.sendError(connID, protocol.OperationFailedError())
		return
	}
	if creator == nil {
		c.sendError(connID, protocol.NotFoundError("user "+payload.UserID+" does not exist"))
		return
	}

	created, err := c.sessions.Create(ctx, payload.UserID, payload.CodeSnippetID, payload.MaxParticipants)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	if err := c.registry.Bind(connID, created.ID, payload.UserID); err != nil {
		c.sendError(connID, protocol.UnauthorizedError(err.Error()))
		return
	}

	c.router.ToConn(connID, protocol.EventSessionCreated, protocol.SessionCreatedPayload{
		SessionState: c.buildSessionState(ctx, created),
	})
}

func (c *Coordinator) handleJoinSession(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.JoinSessionPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	// a bound connection may only re-join its own (user, session) pair
	if binding, bound := c.registry.Binding(connID); bound {
		if binding.SessionID != payload.SessionID || binding.UserID != payload.UserID {
			c.sendError(connID, protocol.UnauthorizedError("connection is already bound to another session"))
			return
		}
	}

	joining, err := c.users.GetUserByID(ctx, payload.UserID)
	if err != nil {
		logger.ErrorF("[%s] Fail to resolve user %s, details: %v", connID, payload.UserID, err)
		c.sendError(connID, protocol.OperationFailedError())
		return
	}
	if joining == nil {
		c.sendError(connID, protocol.NotFoundError("user "+payload.UserID+" does not exist"))
		return
	}

	joined, err := c.sessions.Join(ctx, payload.SessionID, payload.UserID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	if err := c.registry.Bind(connID, payload.SessionID, payload.UserID); err != nil {
		c.sendError(connID, protocol.UnauthorizedError(err.Error()))
		return
	}

	participants := c.resolveParticipants(ctx, joined)

	c.router.ToConn(connID, protocol.EventSessionJoined, protocol.SessionJoinedPayload{
		Participants: participants,
		SessionState: c.buildSessionState(ctx, joined),
	})
	c.router.ToRoom(payload.SessionID, protocol.EventUserJoined, protocol.UserJoinedPayload{
		User:         joining,
		Participants: participants,
	})
}

func (c *Coordinator) handleLeaveSession(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.LeaveSessionPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, err := c.gate.Authorize(connID, payload.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	updated, err := c.sessions.Leave(ctx, binding.SessionID, binding.UserID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	c.registry.Unbind(connID)
	c.registry.Register(connID) // back to unauthenticated, transport stays open

	if updated != nil {
		c.router.ToRoom(binding.SessionID, protocol.EventUserLeft, protocol.UserLeftPayload{
			UserID:       binding.UserID,
			Participants: c.resolveParticipants(ctx, updated),
		})
	}
}

func (c *Coordinator) handleAddAnnotation(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.AddAnnotationPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, err := c.gate.Authorize(connID, payload.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	created, err := c.annotations.Create(ctx, binding.SessionID, binding.UserID, payload.Annotation)
	if err != nil {
		c.sendError(connID, err)
		return
	}
	c.sessions.Touch(ctx, binding.SessionID)

	c.router.ToRoom(binding.SessionID, protocol.EventAnnotationAdded, protocol.AnnotationAddedPayload{
		Annotation: created,
		UserID:     binding.UserID,
	})
}

func (c *Coordinator) handleUpdateAnnotation(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.UpdateAnnotationPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, _, err := c.gate.AuthorizeOwner(ctx, connID, payload.SessionID, payload.AnnotationID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	updated, err := c.annotations.Update(ctx, payload.AnnotationID, payload.Updates)
	if err != nil {
		c.sendError(connID, err)
		return
	}
	c.sessions.Touch(ctx, binding.SessionID)

	c.router.ToRoom(binding.SessionID, protocol.EventAnnotationUpdated, protocol.AnnotationUpdatedPayload{
		Annotation: updated,
		UserID:     binding.UserID,
	})
}

func (c *Coordinator) handleDeleteAnnotation(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.DeleteAnnotationPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, _, err := c.gate.AuthorizeOwner(ctx, connID, payload.SessionID, payload.AnnotationID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	_, deleted, err := c.annotations.Delete(ctx, payload.AnnotationID)
	if err != nil {
		c.sendError(connID, err)
		return
	}
	if !deleted {
		c.sendError(connID, protocol.NotFoundError("annotation "+payload.AnnotationID+" does not exist"))
		return
	}
	c.sessions.Touch(ctx, binding.SessionID)

	c.router.ToRoom(binding.SessionID, protocol.EventAnnotationDeleted, protocol.AnnotationDeletedPayload{
		AnnotationID: payload.AnnotationID,
		UserID:       binding.UserID,
	})
}

func (c *Coordinator) handleHighlightCode(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.HighlightCodePayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, err := c.gate.Authorize(connID, payload.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	c.router.ToRoomExcept(binding.SessionID, connID, protocol.EventCodeHighlighted, protocol.CodeHighlightedPayload{
		Range:  payload.Range,
		UserID: binding.UserID,
	})
}

func (c *Coordinator) handleTypingIndicator(connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.TypingIndicatorPayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, err := c.gate.Authorize(connID, payload.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	// only deltas go out; repeated indicators with the same state are
	// absorbed here
	if !c.registry.SetTyping(binding.SessionID, binding.UserID, payload.IsTyping) {
		return
	}

	c.router.ToRoomExcept(binding.SessionID, connID, protocol.EventTypingIndicator, protocol.TypingIndicatorBroadcast{
		UserID:   binding.UserID,
		IsTyping: payload.IsTyping,
	})
}

func (c *Coordinator) handleRequestSessionState(ctx context.Context, connID uuid.UUID, data []byte) {
	payload, err := decode[protocol.RequestSessionStatePayload](data)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	binding, err := c.gate.Authorize(connID, payload.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}

	current, err := c.sessions.Get(ctx, binding.SessionID)
	if err != nil {
		c.sendError(connID, err)
		return
	}
	if current == nil {
		c.sendError(connID, protocol.SessionNotFoundError(binding.SessionID))
		return
	}

	c.router.ToConn(connID, protocol.EventSessionStateUpdate, protocol.SessionStateUpdatePayload{
		Participants: c.resolveParticipants(ctx, current),
		SessionState: c.buildSessionState(ctx, current),
	})
}

// resolveParticipants maps the session's active participants to user
// records. An unresolvable user is logged and skipped rather than
// failing the whole view.
func (c *Coordinator) resolveParticipants(ctx context.Context, s *database.Session) []*database.User {
	users := make([]*database.User, 0, len(s.Participants))
	for _, participant := range s.Participants {
		if !participant.IsActive {
			continue
		}
		resolved, err := c.users.GetUserByID(ctx, participant.UserID)
		if err != nil {
			logger.WarnF("Fail to resolve participant %s of session %s, details: %v", participant.UserID, s.ID, err)
			continue
		}
		if resolved == nil {
			logger.WarnF("Participant %s of session %s has no user record", participant.UserID, s.ID)
			continue
		}
		users = append(users, resolved)
	}
	return users
}

// buildSessionState assembles the ephemeral per-request view: session
// document, resolved users, current annotations.
func (c *Coordinator) buildSessionState(ctx context.Context, s *database.Session) *protocol.SessionState {
	annotations, err := c.annotations.ListForSession(ctx, s.ID)
	if err != nil {
		logger.WarnF("Fail to list annotations of session %s, details: %v", s.ID, err)
		annotations = []*database.Annotation{}
	}
	return &protocol.SessionState{
		Session:     s,
		Users:       c.resolveParticipants(ctx, s),
		Annotations: annotations,
	}
}
