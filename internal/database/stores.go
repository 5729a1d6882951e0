package database

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("document does not exist")
	IdEmptyError = errors.New("id is empty")
)

type SessionStore interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	FindExpiredSessions(ctx context.Context, cutoff time.Time) ([]*Session, error)
}

type AnnotationStore interface {
	GetAnnotation(ctx context.Context, id string) (*Annotation, error)
	InsertAnnotation(ctx context.Context, annotation *Annotation) error
	ReplaceAnnotation(ctx context.Context, annotation *Annotation) error
	DeleteAnnotation(ctx context.Context, id string) error
	FindAnnotationsBySession(ctx context.Context, sessionID string) ([]*Annotation, error)
	FindAnnotationsByLineRange(ctx context.Context, sessionID string, lineStart, lineEnd int) ([]*Annotation, error)
	DeleteAnnotationsBySession(ctx context.Context, sessionID string) (int64, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
}
