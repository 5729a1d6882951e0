// Package session owns the authoritative session entity: cache-aside
// reads, write-through mutation, capacity-checked admission and the
// inactivity sweep.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/cache"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
)

// AnnotationClearer is the slice of the annotation service the sweep
// cascade needs.
type AnnotationClearer interface {
	ClearSession(ctx context.Context, sessionID string) (int64, error)
}

type Service struct {
	store   database.SessionStore
	repo    *cache.Repository
	clearer AnnotationClearer

	// lockMu guards locks; each session's mutex serializes its
	// read-check-write sequences so a capacity check and the admission
	// it approves are atomic within this process.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	defaultMaxParticipants int
}

func NewService(store database.SessionStore, cacheBackend cache.Cache, ttl time.Duration, clearer AnnotationClearer, defaultMaxParticipants int) *Service {
	return &Service{
		store:                  store,
		repo:                   cache.NewRepository(cacheBackend, ttl, cache.WriteThrough),
		clearer:                clearer,
		locks:                  make(map[string]*sync.Mutex),
		defaultMaxParticipants: defaultMaxParticipants,
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Get is the cache-aside read path. A session absent from both cache and
// store returns (nil, nil).
func (s *Service) Get(ctx context.Context, sessionID string) (*database.Session, error) {
	key := cache.SessionKey(sessionID)

	var cached database.Session
	if s.repo.Get(key, &cached) {
		return &cached, nil
	}

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fail to load session: %w", err)
	}
	s.repo.Put(key, session)
	return session, nil
}

// Mutate persists the session and, only after the store accepted the
// write, refreshes the cache entry. A store failure leaves the cache
// untouched.
func (s *Service) Mutate(ctx context.Context, session *database.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("fail to save session: %w", err)
	}
	s.repo.AfterWrite(cache.SessionKey(session.ID), session)
	return nil
}

// Create seeds a new active session with the creator as its first active
// participant.
func (s *Service) Create(ctx context.Context, creatorID, codeSnippetID string, maxParticipants int) (*database.Session, error) {
	if creatorID == "" {
		return nil, protocol.ValidationError("invalid creator id")
	}
	if maxParticipants <= 0 {
		maxParticipants = s.defaultMaxParticipants
	}

	now := time.Now()
	session := &database.Session{
		ID:              uuid.NewString(),
		CreatorID:       creatorID,
		CodeSnippetID:   codeSnippetID,
		Status:          database.SessionActive,
		MaxParticipants: maxParticipants,
		Participants: []database.Participant{
			{UserID: creatorID, JoinedAt: now, IsActive: true},
		},
		LastActivity: now,
		CreatedAt:    now,
	}

	if err := s.Mutate(ctx, session); err != nil {
		return nil, err
	}
	logger.InfoF("Session created: id=%s, creator=%s, max_participants=%d", session.ID, creatorID, maxParticipants)
	return session, nil
}

// Join admits userID into the session, reactivating a deactivated
// participant or appending a new one. Joining a session the user is
// already active in is a no-op that still returns the current session.
func (s *Service) Join(ctx context.Context, sessionID, userID string) (*database.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, protocol.SessionNotFoundError(sessionID)
	}
	if session.Status != database.SessionActive {
		return nil, protocol.SessionNotActiveError(sessionID)
	}

	participant := session.FindParticipant(userID)
	if participant != nil && participant.IsActive {
		return session, nil
	}

	if session.ActiveParticipantCount() >= session.MaxParticipants {
		return nil, protocol.SessionFullError(sessionID)
	}

	now := time.Now()
	if participant != nil {
		participant.IsActive = true
	} else {
		session.Participants = append(session.Participants, database.Participant{
			UserID:   userID,
			JoinedAt: now,
			IsActive: true,
		})
	}
	session.LastActivity = now

	if err := s.Mutate(ctx, session); err != nil {
		return nil, err
	}
	logger.InfoF("User joined session: session_id=%s, user_id=%s, active=%d/%d",
		sessionID, userID, session.ActiveParticipantCount(), session.MaxParticipants)
	return session, nil
}

// Leave deactivates the participant. When the last active participant
// leaves, the session completes. Leaving an absent session is a no-op.
func (s *Service) Leave(ctx context.Context, sessionID, userID string) (*database.Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	participant := session.FindParticipant(userID)
	if participant == nil || !participant.IsActive {
		return session, nil
	}

	participant.IsActive = false
	if session.ActiveParticipantCount() == 0 {
		session.Status = database.SessionCompleted
		logger.InfoF("Session completed: id=%s, last participant left", sessionID)
	}
	session.LastActivity = time.Now()

	if err := s.Mutate(ctx, session); err != nil {
		return nil, err
	}
	logger.InfoF("User left session: session_id=%s, user_id=%s, active=%d",
		sessionID, userID, session.ActiveParticipantCount())
	return session, nil
}

// Touch bumps lastActivity so the inactivity sweep sees the session as
// live. Failures are logged, never propagated: activity tracking must
// not fail the mutation that caused it.
func (s *Service) Touch(ctx context.Context, sessionID string) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil || session == nil {
		return
	}
	session.LastActivity = time.Now()
	if err := s.Mutate(ctx, session); err != nil {
		logger.WarnF("Fail to touch session %s, details: %v", sessionID, err)
	}
}

// SweepExpired completes every active session idle past the timeout,
// evicts it from the cache and clears its annotations. Sessions fail
// independently; one bad record does not abort the batch. Returns the
// number of sessions swept.
func (s *Service) SweepExpired(ctx context.Context, timeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-timeout)
	expired, err := s.store.FindExpiredSessions(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail to query expired sessions: %w", err)
	}

	swept := 0
	for _, session := range expired {
		lock := s.sessionLock(session.ID)
		lock.Lock()

		session.Status = database.SessionCompleted
		session.UpdatedAt = time.Now()
		if err := s.store.SaveSession(ctx, session); err != nil {
			logger.ErrorF("Fail to expire session %s, details: %v", session.ID, err)
			lock.Unlock()
			continue
		}
		s.repo.Invalidate(cache.SessionKey(session.ID))
		lock.Unlock()

		if _, err := s.clearer.ClearSession(ctx, session.ID); err != nil {
			logger.ErrorF("Fail to clear annotations of expired session %s, details: %v", session.ID, err)
		}
		swept++
		logger.InfoF("Session expired by sweep: id=%s, last_activity=%v", session.ID, session.LastActivity)
	}
	return swept, nil
}
