package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newAttempt(id, student, test string, start time.Time) *models.Attempt {
	return &models.Attempt{
		ID:               id,
		TestDefinitionID: test,
		StudentID:        student,
		Status:           models.AttemptInProgress,
		StartTime:        start,
		EndTime:          start.Add(30 * time.Minute),
		Answers:          models.AnswerMap{},
		TotalQuestions:   2,
		CreatedAt:        start,
		UpdatedAt:        start,
	}
}

func completion(version int, at time.Time) repositories.CompletionUpdate {
	return repositories.CompletionUpdate{
		Score:           1,
		CompletedAt:     at,
		EndReason:       models.EndReasonSubmitted,
		ExpectedVersion: version,
	}
}

func TestAttemptMemory_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects second active attempt for pair", func(t *testing.T) {
		repo := NewAttemptMemory()
		require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

		err := repo.Create(ctx, newAttempt("a2", "s1", "t1", baseTime))
		assert.ErrorIs(t, err, repositories.ErrActiveAttemptExists)

		// other student or other test is fine
		assert.NoError(t, repo.Create(ctx, newAttempt("a3", "s2", "t1", baseTime)))
		assert.NoError(t, repo.Create(ctx, newAttempt("a4", "s1", "t2", baseTime)))
	})

	t.Run("allows new active attempt after completion", func(t *testing.T) {
		repo := NewAttemptMemory()
		require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))
		require.NoError(t, repo.Complete(ctx, "a1", completion(1, baseTime.Add(time.Minute))))

		assert.NoError(t, repo.Create(ctx, newAttempt("a2", "s1", "t1", baseTime)))
	})

	t.Run("concurrent creates produce one winner", func(t *testing.T) {
		repo := NewAttemptMemory()
		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if repo.Create(ctx, newAttempt(fmt.Sprintf("a%d", i), "s1", "t1", baseTime)) == nil {
					atomic.AddInt32(&wins, 1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}

func TestAttemptMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptMemory()
	require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	got.Answers["q1"] = 3
	got.Status = models.AttemptCompleted

	again, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, again.Answers)
	assert.Equal(t, models.AttemptInProgress, again.Status)
}

func TestAttemptMemory_UpsertAnswer(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptMemory()
	require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

	require.NoError(t, repo.UpsertAnswer(ctx, "a1", "q1", 0, baseTime))
	require.NoError(t, repo.UpsertAnswer(ctx, "a1", "q1", 2, baseTime))

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AnswerMap{"q1": 2}, got.Answers)
	assert.Equal(t, 3, got.Version)

	assert.ErrorIs(t, repo.UpsertAnswer(ctx, "missing", "q1", 0, baseTime), repositories.ErrNotFound)

	require.NoError(t, repo.Complete(ctx, "a1", completion(3, baseTime)))
	assert.ErrorIs(t, repo.UpsertAnswer(ctx, "a1", "q2", 1, baseTime), repositories.ErrAttemptNotInProgress)
}

func TestAttemptMemory_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("writes completion fields once", func(t *testing.T) {
		repo := NewAttemptMemory()
		require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

		at := baseTime.Add(10 * time.Minute)
		require.NoError(t, repo.Complete(ctx, "a1", completion(1, at)))

		err := repo.Complete(ctx, "a1", repositories.CompletionUpdate{Score: 2, ExpectedVersion: 2, CompletedAt: at.Add(time.Minute)})
		assert.ErrorIs(t, err, repositories.ErrAttemptNotInProgress)

		got, err := repo.GetByID(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, models.AttemptCompleted, got.Status)
		assert.Equal(t, 1, got.Score)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, got.CompletedAt.Equal(at))
		assert.Equal(t, models.EndReasonSubmitted, *got.EndReason)

		_, err = repo.GetActiveAttempt(ctx, "s1", "t1")
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		latest, err := repo.GetLatestCompleted(ctx, "s1", "t1")
		require.NoError(t, err)
		assert.Equal(t, "a1", latest.ID)
		assert.Equal(t, 2, latest.TotalQuestions, "start snapshot survives completion")
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		repo := NewAttemptMemory()
		require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))
		require.NoError(t, repo.UpsertAnswer(ctx, "a1", "q1", 1, baseTime))

		err := repo.Complete(ctx, "a1", completion(1, baseTime))
		assert.ErrorIs(t, err, repositories.ErrVersionConflict)
	})

	t.Run("concurrent completes produce one winner", func(t *testing.T) {
		repo := NewAttemptMemory()
		require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if repo.Complete(ctx, "a1", completion(1, baseTime)) == nil {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins)
	})
}

func TestAttemptMemory_CompleteCopiesResults(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptMemory()
	require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))

	answer := 1
	update := completion(1, baseTime)
	update.DetailedResults = []models.DetailedResult{
		{QuestionID: "q1", Options: []string{"a", "b"}, StudentAnswer: &answer, CorrectAnswer: 1, IsCorrect: true},
	}
	require.NoError(t, repo.Complete(ctx, "a1", update))

	update.DetailedResults[0].IsCorrect = false
	update.DetailedResults[0].Options[0] = "changed"
	answer = 0

	got, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got.DetailedResults, 1)
	assert.True(t, got.DetailedResults[0].IsCorrect)
	assert.Equal(t, "a", got.DetailedResults[0].Options[0])
	assert.Equal(t, 1, *got.DetailedResults[0].StudentAnswer)

	got.DetailedResults[0].IsCorrect = false
	again, err := repo.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, again.DetailedResults[0].IsCorrect)
}

func TestAttemptMemory_List(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptMemory()
	require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))
	require.NoError(t, repo.Create(ctx, newAttempt("a2", "s2", "t1", baseTime.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newAttempt("a3", "s1", "t2", baseTime.Add(2*time.Minute))))
	require.NoError(t, repo.Complete(ctx, "a1", completion(1, baseTime.Add(3*time.Minute))))

	ids := func(list []*models.Attempt) []string {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, a.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		filters repositories.AttemptFilters
		want    []string
		total   int64
	}{
		{"all newest first", repositories.AttemptFilters{}, []string{"a3", "a2", "a1"}, 3},
		{"by student", repositories.AttemptFilters{StudentID: strPtr("s1")}, []string{"a3", "a1"}, 2},
		{"by test", repositories.AttemptFilters{TestDefinitionID: strPtr("t1")}, []string{"a2", "a1"}, 2},
		{"by status", repositories.AttemptFilters{Status: statusPtr(models.AttemptCompleted)}, []string{"a1"}, 1},
		{"by test set", repositories.AttemptFilters{TestDefinitionIDs: []string{"t2"}}, []string{"a3"}, 1},
		{"empty test set", repositories.AttemptFilters{TestDefinitionIDs: []string{}}, []string{}, 0},
		{"paged", repositories.AttemptFilters{Limit: 1, Offset: 1}, []string{"a2"}, 3},
		{"offset past end", repositories.AttemptFilters{Offset: 5}, []string{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, total, err := repo.List(ctx, tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestAttemptMemory_GetExpiredAttempts(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptMemory()
	require.NoError(t, repo.Create(ctx, newAttempt("a1", "s1", "t1", baseTime)))
	require.NoError(t, repo.Create(ctx, newAttempt("a2", "s2", "t1", baseTime.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, newAttempt("a3", "s3", "t1", baseTime.Add(-time.Hour))))

	expired, err := repo.GetExpiredAttempts(ctx, baseTime.Add(45*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "a3", expired[0].ID)
	assert.Equal(t, "a1", expired[1].ID)

	limited, err := repo.GetExpiredAttempts(ctx, baseTime.Add(45*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func strPtr(s string) *string { return &s }

func statusPtr(s models.AttemptStatus) *models.AttemptStatus { return &s }
