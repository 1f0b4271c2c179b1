package repositories

import (
	"errors"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"gorm.io/datatypes"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")

	// ErrActiveAttemptExists is returned by Create when the student already
	// holds an in-progress attempt for the same test.
	ErrActiveAttemptExists = errors.New("active attempt already exists")

	// ErrAttemptNotInProgress is returned by conditional writes that found the
	// attempt already completed.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")

	// ErrVersionConflict is returned by Complete when the attempt is still in
	// progress but was written after the caller read it.
	ErrVersionConflict = errors.New("attempt was modified concurrently")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	StudentID         *string               `json:"student_id"`
	TestDefinitionID  *string               `json:"test_definition_id"`
	TestDefinitionIDs []string              `json:"test_definition_ids"` // restrict to these tests; empty slice (non-nil) matches nothing
	Status            *models.AttemptStatus `json:"status"`
	Limit             int                   `json:"limit"`
	Offset            int                   `json:"offset"`
}

// CompletionUpdate is written in one conditional transition to completed.
type CompletionUpdate struct {
	Score           int
	CompletedAt     time.Time
	EndReason       models.EndReason
	DetailedResults datatypes.JSONSlice[models.DetailedResult]
	// ExpectedVersion must match the stored version for the write to apply.
	ExpectedVersion int
}

// Apply copies the completion fields onto an attempt. TotalQuestions keeps
// its start-time snapshot.
func (u CompletionUpdate) Apply(a *models.Attempt) {
	completedAt := u.CompletedAt
	reason := u.EndReason
	a.Status = models.AttemptCompleted
	a.Score = u.Score
	a.CompletedAt = &completedAt
	a.EndReason = &reason
	a.DetailedResults = u.DetailedResults
	a.Version++
	a.UpdatedAt = u.CompletedAt
}

// Repository aggregates the stores the engine depends on.
type Repository interface {
	Attempt() AttemptRepository
	TestDefinition() TestDefinitionRepository
}

type repository struct {
	attempts    AttemptRepository
	definitions TestDefinitionRepository
}

func NewRepository(attempts AttemptRepository, definitions TestDefinitionRepository) Repository {
	return &repository{attempts: attempts, definitions: definitions}
}

func (r *repository) Attempt() AttemptRepository {
	return r.attempts
}

func (r *repository) TestDefinition() TestDefinitionRepository {
	return r.definitions
}
