package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/scoring"
)

// ===== COMPLETION =====

// finalize scores the attempt and writes the completion in one conditional
// update. A version conflict means an answer landed after the read, so the
// attempt is re-read and rescored. Losing to another completion returns the
// winner's stored result as an AlreadyCompletedError.
func (s *attemptService) finalize(ctx context.Context, attempt *models.Attempt, def *models.TestDefinition, now time.Time) (*CompletionResult, error) {
	current := attempt
	for i := 0; i < maxWriteRetries; i++ {
		reason := models.EndReasonSubmitted
		if current.IsExpired(now) {
			reason = models.EndReasonTimeExpired
		}

		outcome := scoring.Score(def, current.Answers)
		update := repositories.CompletionUpdate{
			Score:           outcome.Score,
			CompletedAt:     now,
			EndReason:       reason,
			DetailedResults: outcome.DetailedResults,
			ExpectedVersion: current.Version,
		}

		err := s.repo.Attempt().Complete(ctx, current.ID, update)
		switch {
		case err == nil:
			completed := current.Clone()
			update.Apply(completed)

			s.logger.Info("Test attempt completed",
				"attempt_id", completed.ID,
				"student_id", completed.StudentID,
				"score", completed.Score,
				"total_questions", outcome.TotalQuestions,
				"end_reason", reason)

			eventType := events.EventAttemptSubmitted
			if reason == models.EndReasonTimeExpired {
				eventType = events.EventAttemptExpired
			}
			s.publish(ctx, eventType, completed)

			return s.resultFromAttempt(completed), nil

		case errors.Is(err, repositories.ErrAttemptNotInProgress):
			return nil, s.alreadyCompleted(ctx, current.ID)

		case errors.Is(err, repositories.ErrVersionConflict):
			s.logger.Debug("Attempt changed during completion, rescoring", "attempt_id", current.ID)
			current, err = s.repo.Attempt().GetByID(ctx, current.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload attempt: %w", err)
			}
			if current.IsCompleted() {
				return nil, &AlreadyCompletedError{AttemptID: current.ID, Result: s.resultFromAttempt(current)}
			}

		case repositories.IsNotFoundError(err):
			return nil, ErrAttemptNotFound

		default:
			return nil, fmt.Errorf("failed to complete attempt: %w", err)
		}
	}

	return nil, ErrConcurrentModification
}

// resume returns an in-progress attempt, closing it first when its time is up.
func (s *attemptService) resume(ctx context.Context, active *models.Attempt, def *models.TestDefinition) (*StartAttemptResponse, error) {
	now := s.now()
	if active.IsExpired(now) {
		result, err := s.finalize(ctx, active, def, now)
		if err != nil {
			return nil, err
		}
		return nil, &AlreadyCompletedError{AttemptID: active.ID, Result: result}
	}

	s.logger.Info("Resuming existing attempt",
		"attempt_id", active.ID,
		"student_id", active.StudentID)

	return &StartAttemptResponse{
		AttemptID:      active.ID,
		EndTime:        active.EndTime,
		TotalQuestions: active.TotalQuestions,
		Resumed:        true,
	}, nil
}

// alreadyCompleted loads the stored result of an attempt someone else completed.
func (s *attemptService) alreadyCompleted(ctx context.Context, attemptID string) error {
	winner, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		s.logger.Warn("Failed to load completed attempt", "attempt_id", attemptID, "error", err)
		return &AlreadyCompletedError{AttemptID: attemptID}
	}
	return &AlreadyCompletedError{AttemptID: attemptID, Result: s.resultFromAttempt(winner)}
}

func (s *attemptService) resultFromAttempt(attempt *models.Attempt) *CompletionResult {
	result := &CompletionResult{
		AttemptID:       attempt.ID,
		Score:           attempt.Score,
		TotalQuestions:  attempt.ResultTotal(),
		Percentage:      scoring.Percentage(attempt.Score, attempt.ResultTotal()),
		DetailedResults: []models.DetailedResult(attempt.DetailedResults),
		TimeExpired:     attempt.EndReason != nil && *attempt.EndReason == models.EndReasonTimeExpired,
	}
	if result.DetailedResults == nil {
		result.DetailedResults = []models.DetailedResult{}
	}
	if attempt.CompletedAt != nil {
		result.CompletedAt = *attempt.CompletedAt
	}
	return result
}

// ===== HELPER FUNCTIONS =====

func (s *attemptService) getDefinition(ctx context.Context, id string) (*models.TestDefinition, error) {
	def, err := s.repo.TestDefinition().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get test definition: %w", err)
	}
	return def, nil
}

// getOwnedAttempt treats another student's attempt as missing.
func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID, studentID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *attemptService) canAccessAttempt(ctx context.Context, attempt *models.Attempt, principal models.Principal) (bool, error) {
	switch principal.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleStudent:
		return attempt.StudentID == principal.ID, nil
	case models.RoleTeacher:
		def, err := s.repo.TestDefinition().GetByID(ctx, attempt.TestDefinitionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to get test definition: %w", err)
		}
		return def.CreatedBy == principal.ID, nil
	}
	return false, nil
}

// publish is best effort; the attempt is already persisted.
func (s *attemptService) publish(ctx context.Context, eventType events.EventType, attempt *models.Attempt) {
	if s.publisher == nil {
		return
	}
	event := events.NewAttemptEvent(eventType, attempt, scoring.Percentage(attempt.Score, attempt.ResultTotal()), s.now())
	if err := s.publisher.PublishAttemptEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt event",
			"attempt_id", attempt.ID,
			"event_type", eventType,
			"error", err)
	}
}
