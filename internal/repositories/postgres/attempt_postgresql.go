package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Create relies on the partial unique index; the driver must be opened with
// TranslateError so the violation surfaces as gorm.ErrDuplicatedKey.
func (a AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	if err := a.db.WithContext(ctx).Create(attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repositories.ErrActiveAttemptExists
		}
		return err
	}
	return nil
}

func (a AttemptPostgreSQL) GetByID(ctx context.Context, id string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).Where("id = ?", id).First(&attempt).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	attempts := []*models.Attempt{}
	var total int64

	if filters.TestDefinitionIDs != nil && len(filters.TestDefinitionIDs) == 0 {
		return attempts, 0, nil
	}

	// apply filter first
	query := a.db.WithContext(ctx).Model(&models.Attempt{})
	query = a.applyFiltersAttempt(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPagination(query.Order("start_time DESC, id DESC"), filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND test_definition_id = ? AND status = ?", studentID, testDefinitionID,
			models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) GetLatestCompleted(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("student_id = ? AND test_definition_id = ? AND status = ?", studentID, testDefinitionID,
			models.AttemptCompleted).
		Order("completed_at DESC").
		First(&attempt).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) UpsertAnswer(ctx context.Context, id, questionID string, answer int, at time.Time) error {
	result := a.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"answers": gorm.Expr(
				"jsonb_set(COALESCE(answers, '{}'::jsonb), ARRAY[?]::text[], to_jsonb(?::int), true)",
				questionID, answer),
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return a.classifyMiss(ctx, id, 0)
	}
	return nil
}

func (a AttemptPostgreSQL) Complete(ctx context.Context, id string, update repositories.CompletionUpdate) error {
	result := a.db.WithContext(ctx).Model(&models.Attempt{}).
		Where("id = ? AND status = ? AND version = ?", id, models.AttemptInProgress, update.ExpectedVersion).
		Updates(map[string]interface{}{
			"status":           models.AttemptCompleted,
			"score":            update.Score,
			"completed_at":     update.CompletedAt,
			"end_reason":       update.EndReason,
			"detailed_results": update.DetailedResults,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       update.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return a.classifyMiss(ctx, id, update.ExpectedVersion)
	}
	return nil
}

func (a AttemptPostgreSQL) GetExpiredAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error) {
	var attempts []*models.Attempt
	query := a.db.WithContext(ctx).
		Where("status = ? AND end_time < ?", models.AttemptInProgress, cutoff).
		Order("end_time ASC")
	query = a.helpers.ApplyPagination(query, limit, 0)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// classifyMiss explains why a conditional update touched no rows.
func (a AttemptPostgreSQL) classifyMiss(ctx context.Context, id string, expectedVersion int) error {
	var row struct {
		Status  models.AttemptStatus
		Version int
	}
	err := a.db.WithContext(ctx).Model(&models.Attempt{}).
		Select("status", "version").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		return translateNotFound(err)
	}
	if row.Status != models.AttemptInProgress {
		return repositories.ErrAttemptNotInProgress
	}
	if expectedVersion != 0 && row.Version != expectedVersion {
		return repositories.ErrVersionConflict
	}
	return fmt.Errorf("attempt %s: conditional update matched no rows", id)
}

// applyFiltersAttempt applies common filters to a query
func (a AttemptPostgreSQL) applyFiltersAttempt(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.TestDefinitionID != nil {
		query = query.Where("test_definition_id = ?", *filters.TestDefinitionID)
	}
	if len(filters.TestDefinitionIDs) > 0 {
		query = query.Where("test_definition_id IN ?", filters.TestDefinitionIDs)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	return query
}
