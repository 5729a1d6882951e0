package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	annotation := &database.Annotation{
		ID:          "a1",
		UserID:      "u1",
		SessionID:   "s1",
		LineStart:   3,
		LineEnd:     7,
		ColumnStart: 0,
		ColumnEnd:   12,
		Content:     "rename this variable",
		Type:        database.AnnotationSuggestion,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	frame, err := Encode(EventAnnotationAdded, AnnotationAddedPayload{Annotation: annotation, UserID: "u1"})
	require.NoError(t, err)

	event, data, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	require.Equal(t, EventAnnotationAdded, event)

	var payload AnnotationAddedPayload
	require.NoError(t, json.Unmarshal(data, &payload))

	require.Equal(t, annotation.Content, payload.Annotation.Content)
	require.Equal(t, annotation.Type, payload.Annotation.Type)
	require.Equal(t, annotation.LineStart, payload.Annotation.LineStart)
	require.Equal(t, annotation.LineEnd, payload.Annotation.LineEnd)
	require.Equal(t, annotation.ColumnStart, payload.Annotation.ColumnStart)
	require.Equal(t, annotation.ColumnEnd, payload.Annotation.ColumnEnd)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, _, err := DecodeEnvelope([]byte("{not json"))
	require.Error(t, err)

	_, _, err = DecodeEnvelope([]byte(`{"data":{}}`))
	require.Error(t, err, "missing event name must be rejected")
}

func TestDecodeEnvelopeNoData(t *testing.T) {
	frame, err := Encode(EventHeartbeat, nil)
	require.NoError(t, err)

	event, data, err := DecodeEnvelope(frame)
	require.NoError(t, err)
	require.Equal(t, EventHeartbeat, event)
	require.Empty(t, data)
}

func TestAsCoordinatorError(t *testing.T) {
	require.Equal(t, CodeSessionFull, AsCoordinatorError(SessionFullError("s")).Code)
	require.Equal(t, CodeOperationFailed, AsCoordinatorError(errors.New("socket hangup")).Code)
}
