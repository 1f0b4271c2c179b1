package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/SAP-F-2025/test-attempt-service/internal/errors"
	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/google/uuid"
)

// maxWriteRetries bounds re-read/retry loops after losing a conditional write.
const maxWriteRetries = 3

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type attemptService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *slog.Logger
	ops       *ServiceLogger
	now       func() time.Time
	newID     func() string
}

type AttemptServiceOption func(*attemptService)

// WithClock replaces time.Now; tests use it to move past end times.
func WithClock(now func() time.Time) AttemptServiceOption {
	return func(s *attemptService) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) AttemptServiceOption {
	return func(s *attemptService) {
		s.newID = newID
	}
}

func NewAttemptService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, opts ...AttemptServiceOption) AttemptService {
	s := &attemptService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		ops:       NewServiceLogger(logger, "attempt"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, studentID, testDefinitionID string) (resp *StartAttemptResponse, err error) {
	defer func(started time.Time) {
		s.ops.LogOperation(ctx, "start_attempt", studentID, testDefinitionID, started, err)
	}(time.Now())

	def, err := s.getDefinition(ctx, testDefinitionID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxWriteRetries; i++ {
		completed, err := s.repo.Attempt().GetLatestCompleted(ctx, studentID, testDefinitionID)
		if err == nil {
			return nil, &AlreadyCompletedError{AttemptID: completed.ID, Result: s.resultFromAttempt(completed)}
		}
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to check completed attempts: %w", err)
		}

		active, err := s.repo.Attempt().GetActiveAttempt(ctx, studentID, testDefinitionID)
		if err == nil {
			return s.resume(ctx, active, def)
		}
		if !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to get active attempt: %w", err)
		}

		now := s.now()
		attempt := &models.Attempt{
			ID:               s.newID(),
			TestDefinitionID: testDefinitionID,
			StudentID:        studentID,
			Status:           models.AttemptInProgress,
			StartTime:        now,
			EndTime:          now.Add(def.TimeLimit()),
			Answers:          models.AnswerMap{},
			Score:            0,
			TotalQuestions:   def.QuestionCount(),
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err = s.repo.Attempt().Create(ctx, attempt)
		if errors.Is(err, repositories.ErrActiveAttemptExists) {
			// lost the insert race; the winner's attempt is resumed on the next pass
			s.logger.Info("Concurrent start detected, resuming existing attempt",
				"student_id", studentID,
				"test_definition_id", testDefinitionID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create attempt: %w", err)
		}

		s.logger.Info("Test attempt started",
			"attempt_id", attempt.ID,
			"test_definition_id", testDefinitionID,
			"student_id", studentID,
			"end_time", attempt.EndTime)
		s.publish(ctx, events.EventAttemptStarted, attempt)

		return &StartAttemptResponse{
			AttemptID:      attempt.ID,
			EndTime:        attempt.EndTime,
			TotalQuestions: attempt.TotalQuestions,
			Resumed:        false,
		}, nil
	}

	return nil, ErrConcurrentModification
}

func (s *attemptService) RecordAnswer(ctx context.Context, attemptID, studentID, questionID string, answer int) (res *AnswerResult, err error) {
	defer func(started time.Time) {
		s.ops.LogOperation(ctx, "record_answer", studentID, attemptID, started, err)
	}(time.Now())

	if !models.IsValidQuestionID(questionID) {
		return nil, ValidationErrors{*apperrors.NewValidationErrorWithRule("questionId",
			"must not contain '.' or start with '$'", "question_id", questionID)}
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, &AlreadyCompletedError{AttemptID: attempt.ID, Result: s.resultFromAttempt(attempt)}
	}

	now := s.now()
	if attempt.IsExpired(now) {
		def, err := s.getDefinition(ctx, attempt.TestDefinitionID)
		if err != nil {
			return nil, err
		}
		result, err := s.finalize(ctx, attempt, def, now)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Answer dropped, attempt auto-submitted after time expired",
			"attempt_id", attemptID,
			"question_id", questionID)
		return &AnswerResult{Completion: result}, nil
	}

	err = s.repo.Attempt().UpsertAnswer(ctx, attemptID, questionID, answer, now)
	if errors.Is(err, repositories.ErrAttemptNotInProgress) {
		return nil, s.alreadyCompleted(ctx, attemptID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	s.logger.Debug("Answer saved",
		"attempt_id", attemptID,
		"question_id", questionID)

	return &AnswerResult{Saved: true}, nil
}

func (s *attemptService) Complete(ctx context.Context, attemptID, studentID string) (res *CompletionResult, err error) {
	defer func(started time.Time) {
		s.ops.LogOperation(ctx, "complete_attempt", studentID, attemptID, started, err)
	}(time.Now())

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.IsCompleted() {
		return nil, &AlreadyCompletedError{AttemptID: attempt.ID, Result: s.resultFromAttempt(attempt)}
	}

	def, err := s.getDefinition(ctx, attempt.TestDefinitionID)
	if err != nil {
		return nil, err
	}

	return s.finalize(ctx, attempt, def, s.now())
}

func (s *attemptService) GetByID(ctx context.Context, attemptID string, principal models.Principal) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, principal)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		// hidden rather than forbidden so ids cannot be probed
		s.ops.LogPermissionDenied(ctx, NewPermissionError(principal.ID, attemptID, "attempt", "view", "not visible to caller"))
		return nil, ErrAttemptNotFound
	}

	return attempt, nil
}

func (s *attemptService) List(ctx context.Context, principal models.Principal, req ListAttemptsRequest) (*AttemptListResponse, error) {
	filters := repositories.AttemptFilters{
		TestDefinitionID: req.TestDefinitionID,
		Status:           req.Status,
		Limit:            req.Limit,
		Offset:           req.Offset,
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Limit > maxListLimit {
		filters.Limit = maxListLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	switch principal.Role {
	case models.RoleStudent:
		filters.StudentID = &principal.ID
	case models.RoleTeacher:
		ids, err := s.repo.TestDefinition().GetIDsByCreator(ctx, principal.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get teacher tests: %w", err)
		}
		if ids == nil {
			ids = []string{}
		}
		filters.TestDefinitionIDs = ids
	case models.RoleAdmin:
	default:
		return nil, NewPermissionError(principal.ID, "", "attempt", "list", "unknown role")
	}

	attempts, total, err := s.repo.Attempt().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	return &AttemptListResponse{
		Attempts: attempts,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

func (s *attemptService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	overdue, err := s.repo.Attempt().GetExpiredAttempts(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get expired attempts: %w", err)
	}

	definitions := make(map[string]*models.TestDefinition)
	closed := 0
	for _, attempt := range overdue {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		def, ok := definitions[attempt.TestDefinitionID]
		if !ok {
			def, err = s.getDefinition(ctx, attempt.TestDefinitionID)
			if err != nil {
				s.logger.Error("Cannot expire attempt without its test definition",
					"attempt_id", attempt.ID,
					"test_definition_id", attempt.TestDefinitionID,
					"error", err)
				continue
			}
			definitions[attempt.TestDefinitionID] = def
		}

		if _, err := s.finalize(ctx, attempt, def, now); err != nil {
			if _, done := IsAlreadyCompleted(err); done {
				continue
			}
			s.logger.Error("Failed to expire attempt", "attempt_id", attempt.ID, "error", err)
			continue
		}
		closed++
	}

	if closed > 0 {
		s.logger.Info("Expired overdue attempts", "count", closed)
	}
	return closed, nil
}
