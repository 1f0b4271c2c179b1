package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// ===== SERVICE INTERFACES =====

// AttemptService drives the attempt lifecycle. Every call re-reads the
// attempt, decides, and writes back through conditional repository writes.
type AttemptService interface {
	Start(ctx context.Context, studentID, testDefinitionID string) (*StartAttemptResponse, error)
	RecordAnswer(ctx context.Context, attemptID, studentID, questionID string, answer int) (*AnswerResult, error)
	Complete(ctx context.Context, attemptID, studentID string) (*CompletionResult, error)
	GetByID(ctx context.Context, attemptID string, principal models.Principal) (*models.Attempt, error)
	List(ctx context.Context, principal models.Principal, req ListAttemptsRequest) (*AttemptListResponse, error)

	// ExpireOverdue force-completes up to limit in-progress attempts past
	// their end time and returns how many it closed.
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

type TestDefinitionService interface {
	Create(ctx context.Context, principal models.Principal, req *CreateTestDefinitionRequest) (*models.TestDefinition, error)
	GetByID(ctx context.Context, id string, principal models.Principal) (*models.TestDefinition, error)
}

type ExportService interface {
	ExportResults(ctx context.Context, principal models.Principal, testDefinitionID string) ([]byte, error)
}

// ===== REQUEST / RESPONSE TYPES =====

type StartAttemptResponse struct {
	AttemptID      string    `json:"attemptId"`
	EndTime        time.Time `json:"endTime"`
	TotalQuestions int       `json:"totalQuestions"`
	Resumed        bool      `json:"resumed"`
}

type CompletionResult struct {
	AttemptID       string                  `json:"attemptId"`
	Score           int                     `json:"score"`
	TotalQuestions  int                     `json:"totalQuestions"`
	Percentage      int                     `json:"percentage"`
	DetailedResults []models.DetailedResult `json:"detailedResults"`
	TimeExpired     bool                    `json:"timeExpired"`
	CompletedAt     time.Time               `json:"completedAt"`
}

// AnswerResult is either a saved answer or, when the attempt had already run
// out of time, the auto-submitted completion.
type AnswerResult struct {
	Saved      bool
	Completion *CompletionResult
}

type ListAttemptsRequest struct {
	TestDefinitionID *string
	Status           *models.AttemptStatus
	Limit            int
	Offset           int
}

type AttemptListResponse struct {
	Attempts []*models.Attempt `json:"attempts"`
	Total    int64             `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type CreateTestDefinitionRequest struct {
	ID          string            `json:"testDefinitionId" validate:"omitempty,max=64"`
	Title       string            `json:"title" validate:"required,min=1,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=1000"`
	Duration    *int              `json:"duration" validate:"required,min=0,max=600"`
	Questions   []models.Question `json:"questions" validate:"required,min=1,dive"`
}
