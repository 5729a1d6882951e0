package database

import "time"

const (
	SessionCollectionName    = "sessions"
	AnnotationCollectionName = "annotations"
	UserCollectionName       = "users"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

type AnnotationType string

const (
	AnnotationComment    AnnotationType = "comment"
	AnnotationSuggestion AnnotationType = "suggestion"
	AnnotationQuestion   AnnotationType = "question"
)

func ValidAnnotationType(t AnnotationType) bool {
	return t == AnnotationComment || t == AnnotationSuggestion || t == AnnotationQuestion
}

// Participant is one user's membership record inside a session. A
// participant is deactivated on leave, never removed.
type Participant struct {
	UserID   string    `bson:"user_id" json:"userId"`
	JoinedAt time.Time `bson:"joined_at" json:"joinedAt"`
	IsActive bool      `bson:"is_active" json:"isActive"`
}

type Session struct {
	ID              string        `bson:"_id" json:"id"`
	CreatorID       string        `bson:"creator_id" json:"creatorId"`
	CodeSnippetID   string        `bson:"code_snippet_id" json:"codeSnippetId"`
	Status          SessionStatus `bson:"status" json:"status"`
	MaxParticipants int           `bson:"max_participants" json:"maxParticipants"`
	Participants    []Participant `bson:"participants" json:"participants"`
	LastActivity    time.Time     `bson:"last_activity" json:"lastActivity"`
	CreatedAt       time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updated_at" json:"updatedAt"`
}

// ActiveParticipantCount counts participants whose membership is live,
// the number the capacity check admits against.
func (s *Session) ActiveParticipantCount() int {
	count := 0
	for _, p := range s.Participants {
		if p.IsActive {
			count++
		}
	}
	return count
}

// FindParticipant returns a pointer into the participants slice, or nil.
func (s *Session) FindParticipant(userID string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i]
		}
	}
	return nil
}

// Annotation is a user comment anchored to a line/column range of the
// session's code snippet.
type Annotation struct {
	ID          string         `bson:"_id" json:"id"`
	UserID      string         `bson:"user_id" json:"userId"`
	SessionID   string         `bson:"session_id" json:"sessionId"`
	LineStart   int            `bson:"line_start" json:"lineStart"`
	LineEnd     int            `bson:"line_end" json:"lineEnd"`
	ColumnStart int            `bson:"column_start" json:"columnStart"`
	ColumnEnd   int            `bson:"column_end" json:"columnEnd"`
	Content     string         `bson:"content" json:"content"`
	Type        AnnotationType `bson:"type" json:"type"`
	CreatedAt   time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updatedAt"`
}

type User struct {
	ID          string `bson:"_id" json:"id"`
	Username    string `bson:"username" json:"username"`
	DisplayName string `bson:"display_name" json:"displayName"`
	AvatarURL   string `bson:"avatar_url" json:"avatarUrl"`
}
