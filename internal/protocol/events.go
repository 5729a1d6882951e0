// Package protocol defines the JSON event envelope exchanged over the
// persistent connection, the payload shapes for every event, and the
// stable error codes clients key on.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/tidwall/gjson"
)

// client → server events
const (
	EventCreateSession       = "create-session"
	EventJoinSession         = "join-session"
	EventLeaveSession        = "leave-session"
	EventAddAnnotation       = "add-annotation"
	EventUpdateAnnotation    = "update-annotation"
	EventDeleteAnnotation    = "delete-annotation"
	EventHighlightCode       = "highlight-code"
	EventTypingIndicator     = "typing-indicator"
	EventHeartbeat           = "heartbeat"
	EventRequestSessionState = "request-session-state"
)

// server → client events
const (
	EventSessionCreated     = "session-created"
	EventSessionJoined      = "session-joined"
	EventUserJoined         = "user-joined"
	EventUserLeft           = "user-left"
	EventAnnotationAdded    = "annotation-added"
	EventAnnotationUpdated  = "annotation-updated"
	EventAnnotationDeleted  = "annotation-deleted"
	EventCodeHighlighted    = "code-highlighted"
	EventHeartbeatPing      = "heartbeat-ping"
	EventHeartbeatAck       = "heartbeat-ack"
	EventSessionStateUpdate = "session-state-update"
	EventAIAnalysis         = "ai-analysis"
	EventDebateArguments    = "debate-arguments"
	EventError              = "error"
)

// Envelope is the wire frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode frames an outbound event.
func Encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("fail to encode %s payload: %w", event, err)
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// DecodeEnvelope pulls the event name and the untouched data bytes out of
// an inbound frame without decoding the payload.
func DecodeEnvelope(message []byte) (string, []byte, error) {
	if !gjson.ValidBytes(message) {
		return "", nil, fmt.Errorf("invalid message frame")
	}
	event := gjson.GetBytes(message, "event")
	if !event.Exists() || event.String() == "" {
		return "", nil, fmt.Errorf("message frame missing event name")
	}
	data := gjson.GetBytes(message, "data")
	return event.String(), []byte(data.Raw), nil
}

type CreateSessionPayload struct {
	UserID          string `json:"userId"`
	CodeSnippetID   string `json:"codeSnippetId"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
}

type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type LeaveSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// AnnotationInput is the client-supplied portion of a new annotation.
type AnnotationInput struct {
	LineStart   int    `json:"lineStart"`
	LineEnd     int    `json:"lineEnd"`
	ColumnStart int    `json:"columnStart"`
	ColumnEnd   int    `json:"columnEnd"`
	Content     string `json:"content"`
	Type        string `json:"type"`
}

type AddAnnotationPayload struct {
	SessionID  string          `json:"sessionId"`
	Annotation AnnotationInput `json:"annotation"`
}

// AnnotationUpdates carries a partial update; nil fields are untouched.
type AnnotationUpdates struct {
	LineStart   *int    `json:"lineStart,omitempty"`
	LineEnd     *int    `json:"lineEnd,omitempty"`
	ColumnStart *int    `json:"columnStart,omitempty"`
	ColumnEnd   *int    `json:"columnEnd,omitempty"`
	Content     *string `json:"content,omitempty"`
	Type        *string `json:"type,omitempty"`
}

type UpdateAnnotationPayload struct {
	SessionID    string            `json:"sessionId"`
	AnnotationID string            `json:"annotationId"`
	Updates      AnnotationUpdates `json:"updates"`
}

type DeleteAnnotationPayload struct {
	SessionID    string `json:"sessionId"`
	AnnotationID string `json:"annotationId"`
}

type HighlightRange struct {
	LineStart   int `json:"lineStart"`
	LineEnd     int `json:"lineEnd"`
	ColumnStart int `json:"columnStart"`
	ColumnEnd   int `json:"columnEnd"`
}

type HighlightCodePayload struct {
	SessionID string         `json:"sessionId"`
	Range     HighlightRange `json:"range"`
}

type TypingIndicatorPayload struct {
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"isTyping"`
}

type RequestSessionStatePayload struct {
	SessionID string `json:"sessionId"`
}

// SessionState is the derived view sent on join and on request: the
// session document, the resolved users behind its active participants,
// and the current annotation list. Never persisted.
type SessionState struct {
	Session     *database.Session      `json:"session"`
	Users       []*database.User       `json:"users"`
	Annotations []*database.Annotation `json:"annotations"`
}

type SessionCreatedPayload struct {
	SessionState *SessionState `json:"sessionState"`
}

type SessionJoinedPayload struct {
	Participants []*database.User `json:"participants"`
	SessionState *SessionState    `json:"sessionState"`
}

type UserJoinedPayload struct {
	User         *database.User   `json:"user"`
	Participants []*database.User `json:"participants"`
}

type UserLeftPayload struct {
	UserID       string           `json:"userId"`
	Participants []*database.User `json:"participants"`
}

type AnnotationAddedPayload struct {
	Annotation *database.Annotation `json:"annotation"`
	UserID     string               `json:"userId"`
}

type AnnotationUpdatedPayload struct {
	Annotation *database.Annotation `json:"annotation"`
	UserID     string               `json:"userId"`
}

type AnnotationDeletedPayload struct {
	AnnotationID string `json:"annotationId"`
	UserID       string `json:"userId"`
}

type CodeHighlightedPayload struct {
	Range  HighlightRange `json:"range"`
	UserID string         `json:"userId"`
}

type TypingIndicatorBroadcast struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type SessionStateUpdatePayload struct {
	Participants []*database.User `json:"participants"`
	SessionState *SessionState    `json:"sessionState"`
}

type AIAnalysisPayload struct {
	SessionID   string          `json:"sessionId"`
	Suggestions json.RawMessage `json:"suggestions"`
}

type DebateArgumentsPayload struct {
	SessionID string          `json:"sessionId"`
	Arguments json.RawMessage `json:"arguments"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
