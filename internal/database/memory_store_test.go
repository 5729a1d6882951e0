package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		err := store.SaveSession(ctx, &Session{ID: id, Status: SessionActive})
		if err != nil {
			t.Fatalf("SaveSession(%s): %v", id, err)
		}
	}

	_, err := store.GetSession(ctx, "2")
	if err != nil {
		t.Fatal("Except got session id 2, but got error")
	}

	if err := store.DeleteSession(ctx, "1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	_, err = store.GetSession(ctx, "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("Except not found error, but got nil")
	}
}

func TestMemoryStoreFindExpiredSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = store.SaveSession(ctx, &Session{ID: "stale", Status: SessionActive, LastActivity: now.Add(-2 * time.Hour)})
	_ = store.SaveSession(ctx, &Session{ID: "fresh", Status: SessionActive, LastActivity: now})
	_ = store.SaveSession(ctx, &Session{ID: "done", Status: SessionCompleted, LastActivity: now.Add(-2 * time.Hour)})

	expired, err := store.FindExpiredSessions(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("FindExpiredSessions: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("expected only the stale active session, got %+v", expired)
	}
}

func TestMemoryAnnotationStoreLineRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	annotations := []*Annotation{
		{ID: "a", SessionID: "s", LineStart: 1, LineEnd: 3, CreatedAt: base},
		{ID: "b", SessionID: "s", LineStart: 5, LineEnd: 9, CreatedAt: base.Add(time.Second)},
		{ID: "c", SessionID: "s", LineStart: 1, LineEnd: 1, CreatedAt: base.Add(2 * time.Second)},
		{ID: "d", SessionID: "other", LineStart: 1, LineEnd: 9, CreatedAt: base},
	}
	for _, a := range annotations {
		if err := store.InsertAnnotation(ctx, a); err != nil {
			t.Fatalf("InsertAnnotation(%s): %v", a.ID, err)
		}
	}

	// overlap with [2,6] picks a (1-3) and b (5-9) but not c (1-1)
	got, err := store.FindAnnotationsByLineRange(ctx, "s", 2, 6)
	if err != nil {
		t.Fatalf("FindAnnotationsByLineRange: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected [a b], got %+v", got)
	}
}

func TestMemoryAnnotationStoreOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	_ = store.InsertAnnotation(ctx, &Annotation{ID: "late", SessionID: "s", LineStart: 2, LineEnd: 2, CreatedAt: base.Add(time.Minute)})
	_ = store.InsertAnnotation(ctx, &Annotation{ID: "early", SessionID: "s", LineStart: 2, LineEnd: 2, CreatedAt: base})
	_ = store.InsertAnnotation(ctx, &Annotation{ID: "first", SessionID: "s", LineStart: 1, LineEnd: 1, CreatedAt: base.Add(time.Hour)})

	got, err := store.FindAnnotationsBySession(ctx, "s")
	if err != nil {
		t.Fatalf("FindAnnotationsBySession: %v", err)
	}
	want := []string{"first", "early", "late"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestMemoryAnnotationStoreDeleteBySession(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = store.InsertAnnotation(ctx, &Annotation{ID: id, SessionID: "s", CreatedAt: time.Now()})
	}
	_ = store.InsertAnnotation(ctx, &Annotation{ID: "keep", SessionID: "other", CreatedAt: time.Now()})

	deleted, err := store.DeleteAnnotationsBySession(ctx, "s")
	if err != nil {
		t.Fatalf("DeleteAnnotationsBySession: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	remaining, _ := store.FindAnnotationsBySession(ctx, "s")
	if len(remaining) != 0 {
		t.Fatalf("expected empty session, got %d annotations", len(remaining))
	}
	if _, err := store.GetAnnotation(ctx, "keep"); err != nil {
		t.Fatalf("annotation of other session should survive: %v", err)
	}
}
