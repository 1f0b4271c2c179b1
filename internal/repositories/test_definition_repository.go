package repositories

import (
	"context"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// TestDefinitionRepository is read-mostly; the engine never updates a definition.
type TestDefinitionRepository interface {
	Create(ctx context.Context, def *models.TestDefinition) error
	GetByID(ctx context.Context, id string) (*models.TestDefinition, error)
	GetIDsByCreator(ctx context.Context, createdBy string) ([]string, error)
}
