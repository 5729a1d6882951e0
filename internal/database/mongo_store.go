package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/peercode-live/peercode-go-collab-server/internal/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DBStore implements SessionStore, AnnotationStore and UserStore on top of
// the shared Mongo database handle.
type DBStore struct {
	db *mongo.Database
}

var DbStore *DBStore

func NewDatabaseStore() *DBStore {
	if DbStore == nil {
		DbStore = &DBStore{db: Database}
	}
	return DbStore
}

func wrapMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("unique key conflicts: %w", err)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ds *DBStore) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if id == "" {
		return nil, IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: id}}
	var session Session

	startTime := time.Now()
	err := ds.db.Collection(SessionCollectionName).FindOne(ctx, filter).Decode(&session)
	logger.DebugF("session query cost: %v", time.Since(startTime))

	if err != nil {
		return nil, wrapMongoError(err)
	}
	return &session, nil
}

func (ds *DBStore) SaveSession(ctx context.Context, session *Session) error {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if session.ID == "" {
		return IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: session.ID}}
	opts := options.Replace().SetUpsert(true)

	result, err := ds.db.Collection(SessionCollectionName).ReplaceOne(ctx, filter, session, opts)

	if err != nil {
		return wrapMongoError(err)
	}

	logger.InfoF("Session saved: id=%s, matched=%d, modified=%d, upserted=%v",
		session.ID,
		result.MatchedCount,
		result.ModifiedCount,
		result.UpsertedID != nil,
	)

	return nil
}

func (ds *DBStore) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if id == "" {
		return IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: id}}
	result, err := ds.db.Collection(SessionCollectionName).DeleteOne(ctx, filter)

	if err != nil {
		return wrapMongoError(err)
	}

	logger.InfoF("Session deleted: id=%s, deleted=%d", id, result.DeletedCount)

	return nil
}

func (ds *DBStore) FindExpiredSessions(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	filter := bson.D{
		{Key: "status", Value: SessionActive},
		{Key: "last_activity", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	}

	cursor, err := ds.db.Collection(SessionCollectionName).Find(ctx, filter)
	if err != nil {
		return nil, wrapMongoError(err)
	}

	var sessions []*Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, wrapMongoError(err)
	}
	return sessions, nil
}

func (ds *DBStore) GetAnnotation(ctx context.Context, id string) (*Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if id == "" {
		return nil, IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: id}}
	var annotation Annotation

	startTime := time.Now()
	err := ds.db.Collection(AnnotationCollectionName).FindOne(ctx, filter).Decode(&annotation)
	logger.DebugF("annotation query cost: %v", time.Since(startTime))

	if err != nil {
		return nil, wrapMongoError(err)
	}
	return &annotation, nil
}

func (ds *DBStore) InsertAnnotation(ctx context.Context, annotation *Annotation) error {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if annotation.ID == "" {
		return IdEmptyError
	}

	_, err := ds.db.Collection(AnnotationCollectionName).InsertOne(ctx, annotation)
	if err != nil {
		return wrapMongoError(err)
	}

	logger.InfoF("Annotation saved: id=%s, session_id=%s", annotation.ID, annotation.SessionID)
	return nil
}

func (ds *DBStore) ReplaceAnnotation(ctx context.Context, annotation *Annotation) error {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if annotation.ID == "" {
		return IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: annotation.ID}}
	result, err := ds.db.Collection(AnnotationCollectionName).ReplaceOne(ctx, filter, annotation)
	if err != nil {
		return wrapMongoError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	logger.InfoF("Annotation replaced: id=%s, session_id=%s", annotation.ID, annotation.SessionID)
	return nil
}

func (ds *DBStore) DeleteAnnotation(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if id == "" {
		return IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: id}}
	result, err := ds.db.Collection(AnnotationCollectionName).DeleteOne(ctx, filter)
	if err != nil {
		return wrapMongoError(err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	logger.InfoF("Annotation deleted: id=%s", id)
	return nil
}

func (ds *DBStore) FindAnnotationsBySession(ctx context.Context, sessionID string) ([]*Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if sessionID == "" {
		return nil, IdEmptyError
	}

	filter := bson.D{{Key: "session_id", Value: sessionID}}
	opts := options.Find().SetSort(bson.D{{Key: "line_start", Value: 1}, {Key: "created_at", Value: 1}})

	cursor, err := ds.db.Collection(AnnotationCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}

	var annotations []*Annotation
	if err := cursor.All(ctx, &annotations); err != nil {
		return nil, wrapMongoError(err)
	}
	return annotations, nil
}

func (ds *DBStore) FindAnnotationsByLineRange(ctx context.Context, sessionID string, lineStart, lineEnd int) ([]*Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if sessionID == "" {
		return nil, IdEmptyError
	}

	// interval overlap: [line_start, line_end] intersects [lineStart, lineEnd]
	filter := bson.D{
		{Key: "session_id", Value: sessionID},
		{Key: "line_start", Value: bson.D{{Key: "$lte", Value: lineEnd}}},
		{Key: "line_end", Value: bson.D{{Key: "$gte", Value: lineStart}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "line_start", Value: 1}, {Key: "created_at", Value: 1}})

	cursor, err := ds.db.Collection(AnnotationCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapMongoError(err)
	}

	var annotations []*Annotation
	if err := cursor.All(ctx, &annotations); err != nil {
		return nil, wrapMongoError(err)
	}
	return annotations, nil
}

func (ds *DBStore) DeleteAnnotationsBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if sessionID == "" {
		return 0, IdEmptyError
	}

	filter := bson.D{{Key: "session_id", Value: sessionID}}
	result, err := ds.db.Collection(AnnotationCollectionName).DeleteMany(ctx, filter)
	if err != nil {
		return 0, wrapMongoError(err)
	}

	logger.InfoF("Annotations cleared: session_id=%s, deleted=%d", sessionID, result.DeletedCount)
	return result.DeletedCount, nil
}

func (ds *DBStore) GetUser(ctx context.Context, id string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	if id == "" {
		return nil, IdEmptyError
	}

	filter := bson.D{{Key: "_id", Value: id}}
	var user User

	err := ds.db.Collection(UserCollectionName).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	return &user, nil
}
