package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	attemptsCollection    = "test_attempts"
	definitionsCollection = "test_definitions"
)

type AttemptMongo struct {
	Col *mongo.Collection
}

func NewAttemptMongo(db *mongo.Database) *AttemptMongo {
	return &AttemptMongo{Col: db.Collection(attemptsCollection)}
}

var _ repositories.AttemptRepository = (*AttemptMongo)(nil)

// EnsureIndexes creates the partial unique index allowing one in-progress
// attempt per (student, test), plus the lookup indexes.
func (r *AttemptMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "test_definition_id", Value: 1}},
			Options: options.Index().
				SetName("active_pair").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.AttemptInProgress}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}},
			Options: options.Index().SetName("status_end_time"),
		},
		{
			Keys:    bson.D{{Key: "test_definition_id", Value: 1}, {Key: "start_time", Value: -1}},
			Options: options.Index().SetName("test_start_time"),
		},
	})
	return err
}

func (r *AttemptMongo) Create(ctx context.Context, attempt *models.Attempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	// $set on answers.<id> needs a document, not null
	if attempt.Answers == nil {
		attempt.Answers = models.AnswerMap{}
	}
	if _, err := r.Col.InsertOne(ctx, attempt); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrActiveAttemptExists
		}
		return err
	}
	return nil
}

func (r *AttemptMongo) GetByID(ctx context.Context, id string) (*models.Attempt, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AttemptMongo) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	attempts := []*models.Attempt{}
	if filters.TestDefinitionIDs != nil && len(filters.TestDefinitionIDs) == 0 {
		return attempts, 0, nil
	}

	filter := bson.M{}
	if filters.StudentID != nil {
		filter["student_id"] = *filters.StudentID
	}
	if filters.Status != nil {
		filter["status"] = *filters.Status
	}
	switch {
	case filters.TestDefinitionID != nil && len(filters.TestDefinitionIDs) > 0:
		filter["$and"] = bson.A{
			bson.M{"test_definition_id": *filters.TestDefinitionID},
			bson.M{"test_definition_id": bson.M{"$in": filters.TestDefinitionIDs}},
		}
	case filters.TestDefinitionID != nil:
		filter["test_definition_id"] = *filters.TestDefinitionID
	case len(filters.TestDefinitionIDs) > 0:
		filter["test_definition_id"] = bson.M{"$in": filters.TestDefinitionIDs}
	}

	total, err := r.Col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}, {Key: "_id", Value: -1}})
	if filters.Limit > 0 {
		opts.SetLimit(int64(filters.Limit))
	}
	if filters.Offset > 0 {
		opts.SetSkip(int64(filters.Offset))
	}

	cursor, err := r.Col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (r *AttemptMongo) GetActiveAttempt(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	return r.findOne(ctx, bson.M{
		"student_id":         studentID,
		"test_definition_id": testDefinitionID,
		"status":             models.AttemptInProgress,
	})
}

func (r *AttemptMongo) GetLatestCompleted(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	return r.findOne(ctx, bson.M{
		"student_id":         studentID,
		"test_definition_id": testDefinitionID,
		"status":             models.AttemptCompleted,
	}, options.FindOne().SetSort(bson.D{{Key: "completed_at", Value: -1}}))
}

func (r *AttemptMongo) UpsertAnswer(ctx context.Context, id, questionID string, answer int, at time.Time) error {
	if !models.IsValidQuestionID(questionID) {
		return fmt.Errorf("question id %q cannot be used as an answer key", questionID)
	}
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AttemptInProgress},
		bson.M{
			"$set": bson.M{"answers." + questionID: answer, "updated_at": at},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.classifyMiss(ctx, id, 0)
	}
	return nil
}

func (r *AttemptMongo) Complete(ctx context.Context, id string, update repositories.CompletionUpdate) error {
	res, err := r.Col.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.AttemptInProgress, "version": update.ExpectedVersion},
		bson.M{
			"$set": bson.M{
				"status":           models.AttemptCompleted,
				"score":            update.Score,
				"completed_at":     update.CompletedAt,
				"end_reason":       update.EndReason,
				"detailed_results": update.DetailedResults,
				"updated_at":       update.CompletedAt,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.classifyMiss(ctx, id, update.ExpectedVersion)
	}
	return nil
}

func (r *AttemptMongo) GetExpiredAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "end_time", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.Col.Find(ctx, bson.M{
		"status":   models.AttemptInProgress,
		"end_time": bson.M{"$lt": cutoff},
	}, opts)
	if err != nil {
		return nil, err
	}

	var attempts []*models.Attempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *AttemptMongo) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := r.Col.FindOne(ctx, filter, opts...).Decode(&attempt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptMongo) classifyMiss(ctx context.Context, id string, expectedVersion int) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != models.AttemptInProgress {
		return repositories.ErrAttemptNotInProgress
	}
	if expectedVersion != 0 && current.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	return fmt.Errorf("attempt %s: conditional update matched no documents", id)
}
