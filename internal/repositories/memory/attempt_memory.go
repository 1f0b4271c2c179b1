package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
)

type AttemptMemory struct {
	mu       sync.RWMutex
	attempts map[string]*models.Attempt
	// active indexes in-progress attempts by (student, test)
	active map[pairKey]string
}

type pairKey struct {
	studentID        string
	testDefinitionID string
}

func NewAttemptMemory() *AttemptMemory {
	return &AttemptMemory{
		attempts: make(map[string]*models.Attempt),
		active:   make(map[pairKey]string),
	}
}

var _ repositories.AttemptRepository = (*AttemptMemory)(nil)

func (m *AttemptMemory) Create(ctx context.Context, attempt *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{attempt.StudentID, attempt.TestDefinitionID}
	if attempt.Status == models.AttemptInProgress {
		if _, exists := m.active[key]; exists {
			return repositories.ErrActiveAttemptExists
		}
		m.active[key] = attempt.ID
	}
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	m.attempts[attempt.ID] = attempt.Clone()
	return nil
}

func (m *AttemptMemory) GetByID(ctx context.Context, id string) (*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *AttemptMemory) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.Attempt, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var allowed map[string]struct{}
	if filters.TestDefinitionIDs != nil {
		allowed = make(map[string]struct{}, len(filters.TestDefinitionIDs))
		for _, id := range filters.TestDefinitionIDs {
			allowed[id] = struct{}{}
		}
	}

	var matched []*models.Attempt
	for _, a := range m.attempts {
		if filters.StudentID != nil && a.StudentID != *filters.StudentID {
			continue
		}
		if filters.TestDefinitionID != nil && a.TestDefinitionID != *filters.TestDefinitionID {
			continue
		}
		if filters.Status != nil && a.Status != *filters.Status {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[a.TestDefinitionID]; !ok {
				continue
			}
		}
		matched = append(matched, a)
	}

	// newest first
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	total := int64(len(matched))
	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filters.Offset:]
		}
	}
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}

	result := make([]*models.Attempt, 0, len(matched))
	for _, a := range matched {
		result = append(result, a.Clone())
	}
	return result, total, nil
}

func (m *AttemptMemory) GetActiveAttempt(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.active[pairKey{studentID, testDefinitionID}]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return m.attempts[id].Clone(), nil
}

func (m *AttemptMemory) GetLatestCompleted(ctx context.Context, studentID, testDefinitionID string) (*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.Attempt
	for _, a := range m.attempts {
		if a.StudentID != studentID || a.TestDefinitionID != testDefinitionID || !a.IsCompleted() {
			continue
		}
		if latest == nil || a.CompletedAt.After(*latest.CompletedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return latest.Clone(), nil
}

func (m *AttemptMemory) UpsertAnswer(ctx context.Context, id, questionID string, answer int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if a.Status != models.AttemptInProgress {
		return repositories.ErrAttemptNotInProgress
	}
	if a.Answers == nil {
		a.Answers = models.AnswerMap{}
	}
	a.Answers[questionID] = answer
	a.Version++
	a.UpdatedAt = at
	return nil
}

func (m *AttemptMemory) Complete(ctx context.Context, id string, update repositories.CompletionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if a.Status != models.AttemptInProgress {
		return repositories.ErrAttemptNotInProgress
	}
	if a.Version != update.ExpectedVersion {
		return repositories.ErrVersionConflict
	}

	update.DetailedResults = models.CloneDetailedResults(update.DetailedResults)
	update.Apply(a)
	delete(m.active, pairKey{a.StudentID, a.TestDefinitionID})
	return nil
}

func (m *AttemptMemory) GetExpiredAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*models.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var expired []*models.Attempt
	for _, id := range m.active {
		a := m.attempts[id]
		if a.EndTime.Before(cutoff) {
			expired = append(expired, a)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EndTime.Before(expired[j].EndTime)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	result := make([]*models.Attempt, 0, len(expired))
	for _, a := range expired {
		result = append(result, a.Clone())
	}
	return result, nil
}
