package mongodb

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TestDefinitionMongo struct {
	Col *mongo.Collection
}

func NewTestDefinitionMongo(db *mongo.Database) *TestDefinitionMongo {
	return &TestDefinitionMongo{Col: db.Collection(definitionsCollection)}
}

var _ repositories.TestDefinitionRepository = (*TestDefinitionMongo)(nil)

func (r *TestDefinitionMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_by", Value: 1}},
		Options: options.Index().SetName("created_by"),
	})
	return err
}

func (r *TestDefinitionMongo) Create(ctx context.Context, def *models.TestDefinition) error {
	if _, err := r.Col.InsertOne(ctx, def); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repositories.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *TestDefinitionMongo) GetByID(ctx context.Context, id string) (*models.TestDefinition, error) {
	var def models.TestDefinition
	if err := r.Col.FindOne(ctx, bson.M{"_id": id}).Decode(&def); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

func (r *TestDefinitionMongo) GetIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	cursor, err := r.Col.Find(ctx, bson.M{"created_by": createdBy},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
