package annotation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peercode-live/peercode-go-collab-server/internal/cache"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *database.MemoryStore) {
	t.Helper()
	store := database.NewMemoryStore()
	return NewService(store, cache.NewLRUCache(64, time.Hour), time.Hour), store
}

func validInput() protocol.AnnotationInput {
	return protocol.AnnotationInput{
		LineStart:   1,
		LineEnd:     3,
		ColumnStart: 0,
		ColumnEnd:   10,
		Content:     "consider extracting this",
		Type:        "suggestion",
	}
}

func TestCreateValidation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*protocol.AnnotationInput)
		message string
	}{
		{"negative line start", func(in *protocol.AnnotationInput) { in.LineStart = -1 }, "line range"},
		{"line end before start", func(in *protocol.AnnotationInput) { in.LineStart = 5; in.LineEnd = 2 }, "line range"},
		{"negative column start", func(in *protocol.AnnotationInput) { in.ColumnStart = -1 }, "column range"},
		{"negative column end", func(in *protocol.AnnotationInput) { in.ColumnEnd = -3 }, "column range"},
		{"empty content", func(in *protocol.AnnotationInput) { in.Content = "" }, "content"},
		{"whitespace content", func(in *protocol.AnnotationInput) { in.Content = "   \t\n" }, "content"},
		{"unknown type", func(in *protocol.AnnotationInput) { in.Type = "rant" }, "type"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := validInput()
			test.mutate(&input)

			_, err := svc.Create(ctx, "s1", "alice", input)

			var coordErr *protocol.CoordinatorError
			require.True(t, errors.As(err, &coordErr))
			require.Equal(t, protocol.CodeValidation, coordErr.Code)
			require.Contains(t, coordErr.Message, test.message)
		})
	}

	// nothing may have reached the store
	annotations, err := store.FindAnnotationsBySession(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, annotations)
}

func TestCreateAssignsServerFields(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "s1", "alice", validInput())
	require.NoError(t, err)

	require.NotEmpty(t, created.ID)
	require.Equal(t, "alice", created.UserID)
	require.Equal(t, "s1", created.SessionID)
	require.Equal(t, database.AnnotationSuggestion, created.Type)
	require.False(t, created.CreatedAt.IsZero())
}

func TestListForSessionSeesEveryMutation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "s1", "alice", validInput())
	require.NoError(t, err)

	listed, err := svc.ListForSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	// the list is now cached; the next mutation must invalidate it
	second, err := svc.Create(ctx, "s1", "alice", validInput())
	require.NoError(t, err)

	listed, err = svc.ListForSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, listed, 2, "cached list must not survive a create")

	content := "rewritten"
	_, err = svc.Update(ctx, first.ID, protocol.AnnotationUpdates{Content: &content})
	require.NoError(t, err)

	listed, err = svc.ListForSession(ctx, "s1")
	require.NoError(t, err)
	found := false
	for _, a := range listed {
		if a.ID == first.ID {
			require.Equal(t, "rewritten", a.Content)
			found = true
		}
	}
	require.True(t, found)

	_, deleted, err := svc.Delete(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	listed, err = svc.ListForSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, listed, 1, "cached list must not survive a delete")
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "s1", "alice", validInput())
	require.NoError(t, err)

	lineEnd := 9
	updated, err := svc.Update(ctx, created.ID, protocol.AnnotationUpdates{LineEnd: &lineEnd})
	require.NoError(t, err)

	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, created.LineStart, updated.LineStart)
	require.Equal(t, 9, updated.LineEnd)
	require.Equal(t, created.Content, updated.Content)
	require.Equal(t, created.CreatedAt.Unix(), updated.CreatedAt.Unix())
	require.Equal(t, "alice", updated.UserID)
}

func TestUpdateRevalidatesMergedGeometry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "s1", "alice", validInput())
	require.NoError(t, err)

	// lineStart 1 remains, so lineEnd 0 makes the merged range invalid
	lineEnd := 0
	_, err = svc.Update(ctx, created.ID, protocol.AnnotationUpdates{LineEnd: &lineEnd})

	var coordErr *protocol.CoordinatorError
	require.True(t, errors.As(err, &coordErr))
	require.Equal(t, protocol.CodeValidation, coordErr.Code)

	// and the stored record is unchanged
	current, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 3, current.LineEnd)
}

func TestUpdateMissingAnnotation(t *testing.T) {
	svc, _ := newTestService(t)

	content := "x"
	_, err := svc.Update(context.Background(), "missing", protocol.AnnotationUpdates{Content: &content})

	var coordErr *protocol.CoordinatorError
	require.True(t, errors.As(err, &coordErr))
	require.Equal(t, protocol.CodeNotFound, coordErr.Code)
}

func TestDeleteReportsExistence(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "s1", "alice", validInput())
	require.NoError(t, err)

	sessionID, deleted, err := svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, "s1", sessionID)

	_, deleted, err = svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestByLineRangeUsesOverlap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mk := func(lineStart, lineEnd int) *database.Annotation {
		input := validInput()
		input.LineStart = lineStart
		input.LineEnd = lineEnd
		created, err := svc.Create(ctx, "s1", "alice", input)
		require.NoError(t, err)
		return created
	}

	spanning := mk(1, 10)
	inside := mk(4, 5)
	before := mk(1, 2)
	_ = before

	got, err := svc.ByLineRange(ctx, "s1", 4, 6)
	require.NoError(t, err)
	require.Len(t, got, 2, "overlap, not containment")
	require.Equal(t, spanning.ID, got[0].ID)
	require.Equal(t, inside.ID, got[1].ID)
}

func TestClearSessionReturnsCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, "s1", "alice", validInput())
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "other", "alice", validInput())
	require.NoError(t, err)

	deleted, err := svc.ClearSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, int64(3), deleted)

	listed, err := svc.ListForSession(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, listed)

	other, err := svc.ListForSession(ctx, "other")
	require.NoError(t, err)
	require.Len(t, other, 1)
}
