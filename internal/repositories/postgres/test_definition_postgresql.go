package postgres

import (
	"context"
	"errors"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type TestDefinitionPostgreSQL struct {
	db *gorm.DB
}

func NewTestDefinitionPostgreSQL(db *gorm.DB) repositories.TestDefinitionRepository {
	return &TestDefinitionPostgreSQL{db: db}
}

func (t TestDefinitionPostgreSQL) Create(ctx context.Context, def *models.TestDefinition) error {
	if err := t.db.WithContext(ctx).Create(def).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repositories.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (t TestDefinitionPostgreSQL) GetByID(ctx context.Context, id string) (*models.TestDefinition, error) {
	var def models.TestDefinition
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&def).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &def, nil
}

func (t TestDefinitionPostgreSQL) GetIDsByCreator(ctx context.Context, createdBy string) ([]string, error) {
	ids := []string{}
	err := t.db.WithContext(ctx).Model(&models.TestDefinition{}).
		Where("created_by = ?", createdBy).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
