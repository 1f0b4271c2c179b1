package events

import (
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents the attempt lifecycle events this service emits
type EventType string

const (
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptExpired   EventType = "attempt.expired"
)

const (
	eventSource  = "test-attempt-service"
	eventVersion = "1.0"
)

// AttemptEvent is the envelope published for every lifecycle transition
type AttemptEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      AttemptEventData       `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptEventData struct {
	AttemptID        string            `json:"attempt_id"`
	TestDefinitionID string            `json:"test_definition_id"`
	StudentID        string            `json:"student_id"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	Score            *int              `json:"score,omitempty"`
	TotalQuestions   int               `json:"total_questions"`
	Percentage       *int              `json:"percentage,omitempty"`
	EndReason        *models.EndReason `json:"end_reason,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// NewAttemptEvent builds an event from the attempt's current state.
// Completion fields are only filled for completed attempts.
func NewAttemptEvent(eventType EventType, attempt *models.Attempt, percentage int, at time.Time) *AttemptEvent {
	data := AttemptEventData{
		AttemptID:        attempt.ID,
		TestDefinitionID: attempt.TestDefinitionID,
		StudentID:        attempt.StudentID,
		StartTime:        attempt.StartTime,
		EndTime:          attempt.EndTime,
		TotalQuestions:   attempt.TotalQuestions,
	}
	if attempt.IsCompleted() {
		score := attempt.Score
		data.Score = &score
		data.Percentage = &percentage
		data.EndReason = attempt.EndReason
		data.CompletedAt = attempt.CompletedAt
	}

	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at,
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}
