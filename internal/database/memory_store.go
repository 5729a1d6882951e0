package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore mirrors DBStore for tests and single-node development runs.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	annotations map[string]*Annotation
	users       map[string]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*Session),
		annotations: make(map[string]*Annotation),
		users:       make(map[string]*User),
	}
}

func cloneSession(s *Session) *Session {
	copied := *s
	copied.Participants = append([]Participant(nil), s.Participants...)
	return &copied
}

func cloneAnnotation(a *Annotation) *Annotation {
	copied := *a
	return &copied
}

func (ms *MemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if id == "" {
		return nil, IdEmptyError
	}
	session, ok := ms.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (ms *MemoryStore) SaveSession(_ context.Context, session *Session) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if session.ID == "" {
		return IdEmptyError
	}
	ms.sessions[session.ID] = cloneSession(session)
	return nil
}

func (ms *MemoryStore) DeleteSession(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if id == "" {
		return IdEmptyError
	}
	delete(ms.sessions, id)
	return nil
}

func (ms *MemoryStore) FindExpiredSessions(_ context.Context, cutoff time.Time) ([]*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var expired []*Session
	for _, session := range ms.sessions {
		if session.Status == SessionActive && session.LastActivity.Before(cutoff) {
			expired = append(expired, cloneSession(session))
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func (ms *MemoryStore) GetAnnotation(_ context.Context, id string) (*Annotation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if id == "" {
		return nil, IdEmptyError
	}
	annotation, ok := ms.annotations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAnnotation(annotation), nil
}

func (ms *MemoryStore) InsertAnnotation(_ context.Context, annotation *Annotation) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if annotation.ID == "" {
		return IdEmptyError
	}
	ms.annotations[annotation.ID] = cloneAnnotation(annotation)
	return nil
}

func (ms *MemoryStore) ReplaceAnnotation(_ context.Context, annotation *Annotation) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if annotation.ID == "" {
		return IdEmptyError
	}
	if _, ok := ms.annotations[annotation.ID]; !ok {
		return ErrNotFound
	}
	ms.annotations[annotation.ID] = cloneAnnotation(annotation)
	return nil
}

func (ms *MemoryStore) DeleteAnnotation(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if id == "" {
		return IdEmptyError
	}
	if _, ok := ms.annotations[id]; !ok {
		return ErrNotFound
	}
	delete(ms.annotations, id)
	return nil
}

func sortAnnotations(annotations []*Annotation) {
	sort.Slice(annotations, func(i, j int) bool {
		if annotations[i].LineStart != annotations[j].LineStart {
			return annotations[i].LineStart < annotations[j].LineStart
		}
		return annotations[i].CreatedAt.Before(annotations[j].CreatedAt)
	})
}

func (ms *MemoryStore) FindAnnotationsBySession(_ context.Context, sessionID string) ([]*Annotation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if sessionID == "" {
		return nil, IdEmptyError
	}
	var annotations []*Annotation
	for _, annotation := range ms.annotations {
		if annotation.SessionID == sessionID {
			annotations = append(annotations, cloneAnnotation(annotation))
		}
	}
	sortAnnotations(annotations)
	return annotations, nil
}

func (ms *MemoryStore) FindAnnotationsByLineRange(_ context.Context, sessionID string, lineStart, lineEnd int) ([]*Annotation, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if sessionID == "" {
		return nil, IdEmptyError
	}
	var annotations []*Annotation
	for _, annotation := range ms.annotations {
		if annotation.SessionID != sessionID {
			continue
		}
		if annotation.LineStart <= lineEnd && annotation.LineEnd >= lineStart {
			annotations = append(annotations, cloneAnnotation(annotation))
		}
	}
	sortAnnotations(annotations)
	return annotations, nil
}

func (ms *MemoryStore) DeleteAnnotationsBySession(_ context.Context, sessionID string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if sessionID == "" {
		return 0, IdEmptyError
	}
	var deleted int64
	for id, annotation := range ms.annotations {
		if annotation.SessionID == sessionID {
			delete(ms.annotations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (ms *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	if id == "" {
		return nil, IdEmptyError
	}
	user, ok := ms.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// PutUser seeds a user record; the coordinator itself never writes users.
func (ms *MemoryStore) PutUser(user *User) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.users[user.ID] = user
}
