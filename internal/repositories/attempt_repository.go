package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// AttemptRepository persists attempt records. Implementations must make
// UpsertAnswer and Complete conditional on status=in_progress, and Create
// must reject a second in-progress attempt for the same (student, test).
type AttemptRepository interface {
	// Basic operations
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id string) (*models.Attempt, error)
	List(ctx context.Context, filters AttemptFilters) ([]*models.Attempt, int64, error)

	// Active attempt management
	GetActiveAttempt(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error)
	GetLatestCompleted(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error)

	// Conditional writes
	UpsertAnswer(ctx context.Context, id, questionID string, answer int, at time.Time) error
	Complete(ctx context.Context, id string, update CompletionUpdate) error

	// Time management
	GetExpiredAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error)
}
