// Package annotation owns validated CRUD and line-range queries over
// annotations. The per-session annotation list is cached with an
// invalidate-on-write policy: every successful mutation drops the cached
// list and the next read repopulates it from the store.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peercode-live/peercode-go-collab-server/internal/cache"
	"github.com/peercode-live/peercode-go-collab-server/internal/database"
	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"github.com/peercode-live/peercode-go-collab-server/internal/protocol"
)

type Service struct {
	store database.AnnotationStore
	repo  *cache.Repository
}

func NewService(store database.AnnotationStore, cacheBackend cache.Cache, ttl time.Duration) *Service {
	return &Service{
		store: store,
		repo:  cache.NewRepository(cacheBackend, ttl, cache.InvalidateOnWrite),
	}
}

func validateGeometry(lineStart, lineEnd, columnStart, columnEnd int) error {
	if lineStart < 0 || lineEnd < lineStart {
		return protocol.ValidationError("invalid line range")
	}
	if columnStart < 0 || columnEnd < 0 {
		return protocol.ValidationError("invalid column range")
	}
	return nil
}

func validate(annotation *database.Annotation) error {
	if err := validateGeometry(annotation.LineStart, annotation.LineEnd, annotation.ColumnStart, annotation.ColumnEnd); err != nil {
		return err
	}
	if strings.TrimSpace(annotation.Content) == "" {
		return protocol.ValidationError("invalid content")
	}
	if !database.ValidAnnotationType(annotation.Type) {
		return protocol.ValidationError(fmt.Sprintf("invalid annotation type %q", annotation.Type))
	}
	return nil
}

// Create validates and persists a new annotation for userID, then drops
// the session's cached annotation list.
func (s *Service) Create(ctx context.Context, sessionID, userID string, input protocol.AnnotationInput) (*database.Annotation, error) {
	now := time.Now()
	annotation := &database.Annotation{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		LineStart:   input.LineStart,
		LineEnd:     input.LineEnd,
		ColumnStart: input.ColumnStart,
		ColumnEnd:   input.ColumnEnd,
		Content:     input.Content,
		Type:        database.AnnotationType(input.Type),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := validate(annotation); err != nil {
		return nil, err
	}

	if err := s.store.InsertAnnotation(ctx, annotation); err != nil {
		return nil, fmt.Errorf("fail to insert annotation: %w", err)
	}
	s.repo.AfterWrite(cache.SessionAnnotationsKey(sessionID), nil)
	return annotation, nil
}

// Update applies the provided fields only, re-validates the merged
// record and persists it. ID, owner, session and createdAt never change.
func (s *Service) Update(ctx context.Context, id string, updates protocol.AnnotationUpdates) (*database.Annotation, error) {
	annotation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if updates.LineStart != nil {
		annotation.LineStart = *updates.LineStart
	}
	if updates.LineEnd != nil {
		annotation.LineEnd = *updates.LineEnd
	}
	if updates.ColumnStart != nil {
		annotation.ColumnStart = *updates.ColumnStart
	}
	if updates.ColumnEnd != nil {
		annotation.ColumnEnd = *updates.ColumnEnd
	}
	if updates.Content != nil {
		annotation.Content = *updates.Content
	}
	if updates.Type != nil {
		annotation.Type = database.AnnotationType(*updates.Type)
	}
	annotation.UpdatedAt = time.Now()

	if err := validate(annotation); err != nil {
		return nil, err
	}

	if err := s.store.ReplaceAnnotation(ctx, annotation); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, protocol.NotFoundError(fmt.Sprintf("annotation %s does not exist", id))
		}
		return nil, fmt.Errorf("fail to replace annotation: %w", err)
	}
	s.repo.AfterWrite(cache.SessionAnnotationsKey(annotation.SessionID), nil)
	return annotation, nil
}

// Get loads a single annotation, mapping store absence to NOT_FOUND.
func (s *Service) Get(ctx context.Context, id string) (*database.Annotation, error) {
	annotation, err := s.store.GetAnnotation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, protocol.NotFoundError(fmt.Sprintf("annotation %s does not exist", id))
		}
		return nil, fmt.Errorf("fail to load annotation: %w", err)
	}
	return annotation, nil
}

// Delete removes the annotation and reports whether it existed, along
// with the session it belonged to.
func (s *Service) Delete(ctx context.Context, id string) (string, bool, error) {
	annotation, err := s.store.GetAnnotation(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fail to load annotation: %w", err)
	}

	if err := s.store.DeleteAnnotation(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fail to delete annotation: %w", err)
	}
	s.repo.AfterWrite(cache.SessionAnnotationsKey(annotation.SessionID), nil)
	return annotation.SessionID, true, nil
}

// ListForSession returns the session's annotations ordered by lineStart
// then createdAt, serving from cache when possible.
func (s *Service) ListForSession(ctx context.Context, sessionID string) ([]*database.Annotation, error) {
	key := cache.SessionAnnotationsKey(sessionID)

	var cached []*database.Annotation
	if s.repo.Get(key, &cached) {
		return cached, nil
	}

	annotations, err := s.store.FindAnnotationsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fail to list annotations: %w", err)
	}
	if annotations == nil {
		annotations = []*database.Annotation{}
	}
	s.repo.Put(key, annotations)
	return annotations, nil
}

// ByLineRange returns annotations whose line interval overlaps
// [lineStart, lineEnd]. Always store-backed; range queries are not cached.
func (s *Service) ByLineRange(ctx context.Context, sessionID string, lineStart, lineEnd int) ([]*database.Annotation, error) {
	if err := validateGeometry(lineStart, lineEnd, 0, 0); err != nil {
		return nil, err
	}
	annotations, err := s.store.FindAnnotationsByLineRange(ctx, sessionID, lineStart, lineEnd)
	if err != nil {
		return nil, fmt.Errorf("fail to query annotations by line range: %w", err)
	}
	return annotations, nil
}

// ClearSession bulk-deletes every annotation of the session and returns
// the deleted count.
func (s *Service) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	deleted, err := s.store.DeleteAnnotationsBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("fail to clear session annotations: %w", err)
	}
	s.repo.Invalidate(cache.SessionAnnotationsKey(sessionID))
	logger.InfoF("Session annotations cleared: session_id=%s, deleted=%d", sessionID, deleted)
	return deleted, nil
}
