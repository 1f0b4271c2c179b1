package postgres

import (
	"fmt"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"gorm.io/gorm"
)

// Migrate creates the tables and the partial unique index that allows one
// in-progress attempt per (student, test).
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.TestDefinition{}, &models.Attempt{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	stmt := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON test_attempts (student_id, test_definition_id) WHERE status = '%s'",
		activePairIndex, models.AttemptInProgress)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("create active attempt index: %w", err)
	}
	return nil
}
