package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/events"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	service   AttemptService
	attempts  *memory.AttemptMemory
	repo      repositories.Repository
	clock     *fakeClock
	publisher *events.MockEventPublisher
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, defs ...*models.TestDefinition) *testEnv {
	t.Helper()
	attempts := memory.NewAttemptMemory()
	repo := repositories.NewRepository(attempts, memory.NewTestDefinitionMemory(defs...))
	clock := newFakeClock()
	publisher := events.NewMockEventPublisher(discardLogger())
	seq := 0
	var mu sync.Mutex

	service := NewAttemptService(repo, publisher, discardLogger(),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("attempt-%d", seq)
		}))

	return &testEnv{
		service:   service,
		attempts:  attempts,
		repo:      repo,
		clock:     clock,
		publisher: publisher,
	}
}

// twoQuestionTest has correct answers [1, 0].
func twoQuestionTest(id string, minutes int) *models.TestDefinition {
	return &models.TestDefinition{
		ID:        id,
		Title:     "Basics",
		Duration:  minutes,
		CreatedBy: "teacher-1",
		Questions: []models.Question{
			{ID: "q1", Text: "1+1?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: 1},
			{ID: "q2", Text: "2-2?", Options: []string{"0", "1", "2", "3"}, CorrectAnswer: 0},
		},
	}
}

func TestAttemptService_ScenarioA_AllCorrect(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 1))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, start.TotalQuestions)
	assert.False(t, start.Resumed)
	assert.Equal(t, env.clock.Now().Add(time.Minute), start.EndTime)

	res, err := env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	res, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q2", 0)
	require.NoError(t, err)
	assert.True(t, res.Saved)

	result, err := env.service.Complete(ctx, start.AttemptID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, 2, result.TotalQuestions)
	assert.Equal(t, 100, result.Percentage)
	assert.False(t, result.TimeExpired)
	require.Len(t, result.DetailedResults, 2)
	assert.True(t, result.DetailedResults[0].IsCorrect)
	assert.True(t, result.DetailedResults[1].IsCorrect)

	stored, err := env.attempts.GetByID(ctx, start.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, stored.Status)
	assert.Equal(t, models.EndReasonSubmitted, *stored.EndReason)
	assert.Equal(t, 2, stored.Score)

	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptStarted), 1)
	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
}

func TestAttemptService_ScenarioB_WrongAndUnanswered(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 1))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 0)
	require.NoError(t, err)

	result, err := env.service.Complete(ctx, start.AttemptID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0, result.Percentage)
	require.Len(t, result.DetailedResults, 2)
	assert.False(t, result.DetailedResults[0].IsCorrect)
	assert.False(t, result.DetailedResults[1].IsCorrect)
	assert.Nil(t, result.DetailedResults[1].StudentAnswer)
}

func TestAttemptService_ScenarioC_ZeroDurationExpiresOnAnswer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t0", 0))

	start, err := env.service.Start(ctx, "s1", "t0")
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), start.EndTime)

	env.clock.Advance(time.Millisecond)
	res, err := env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)
	assert.False(t, res.Saved)
	require.NotNil(t, res.Completion)
	assert.True(t, res.Completion.TimeExpired)
	assert.Equal(t, 0, res.Completion.Score)

	stored, err := env.attempts.GetByID(ctx, start.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, stored.Status)
	assert.Equal(t, models.EndReasonTimeExpired, *stored.EndReason)
	assert.Empty(t, stored.Answers, "the answer that triggered expiry must be dropped")

	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptExpired), 1)
}

func TestAttemptService_ScenarioD_StartAfterCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)
	_, err = env.service.Complete(ctx, start.AttemptID, "s1")
	require.NoError(t, err)

	_, err = env.service.Start(ctx, "s1", "t1")
	require.ErrorIs(t, err, ErrAttemptAlreadyCompleted)
	result, ok := IsAlreadyCompleted(err)
	require.True(t, ok)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Score)

	list, total, err := env.attempts.List(ctx, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown test", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.Start(ctx, "s1", "missing")
		assert.ErrorIs(t, err, ErrTestDefinitionNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("resume returns same attempt without writing", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		first, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		env.clock.Advance(time.Minute)
		second, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)
		assert.True(t, second.Resumed)
		assert.Equal(t, first.AttemptID, second.AttemptID)
		assert.Equal(t, first.EndTime, second.EndTime, "end time is fixed at creation")
		assert.Len(t, env.publisher.EventsOfType(events.EventAttemptStarted), 1)
	})

	t.Run("expired active attempt is closed on start", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 5))
		first, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)
		_, err = env.service.RecordAnswer(ctx, first.AttemptID, "s1", "q2", 0)
		require.NoError(t, err)

		env.clock.Advance(6 * time.Minute)
		_, err = env.service.Start(ctx, "s1", "t1")
		result, ok := IsAlreadyCompleted(err)
		require.True(t, ok)
		require.NotNil(t, result)
		assert.True(t, result.TimeExpired)
		assert.Equal(t, 1, result.Score)
		assert.Equal(t, 50, result.Percentage)
	})

	t.Run("different students get separate attempts", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		a, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)
		b, err := env.service.Start(ctx, "s2", "t1")
		require.NoError(t, err)
		assert.NotEqual(t, a.AttemptID, b.AttemptID)
	})
}

func TestAttemptService_ConcurrentStart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.service.Start(ctx, "s1", "t1")
			errs[i] = err
			if err == nil {
				ids[i] = resp.AttemptID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	_, total, err := env.attempts.List(ctx, repositories.AttemptFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAttemptService_RecordAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("last write wins", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		start, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 3)
		require.NoError(t, err)
		_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
		require.NoError(t, err)

		stored, err := env.attempts.GetByID(ctx, start.AttemptID)
		require.NoError(t, err)
		assert.Equal(t, models.AnswerMap{"q1": 1}, stored.Answers)
	})

	t.Run("out of range answer is stored and scores incorrect", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		start, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		res, err := env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 9)
		require.NoError(t, err)
		assert.True(t, res.Saved)

		result, err := env.service.Complete(ctx, start.AttemptID, "s1")
		require.NoError(t, err)
		assert.Equal(t, 0, result.Score)
		assert.Equal(t, 9, *result.DetailedResults[0].StudentAnswer)
	})

	t.Run("another student's attempt is not found", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		start, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s2", "q1", 1)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("unknown attempt", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		_, err := env.service.RecordAnswer(ctx, "nope", "s1", "q1", 1)
		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("question id unusable as answer key", func(t *testing.T) {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		start, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		for _, questionID := range []string{"a.b", "$set", ""} {
			_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", questionID, 1)
			assert.True(t, IsValidation(err), "question id %q", questionID)
		}

		stored, err := env.attempts.GetByID(ctx, start.AttemptID)
		require.NoError(t, err)
		assert.Empty(t, stored.Answers)
		assert.Equal(t, 1, stored.Version)
	})
}

func TestAttemptService_TerminalCompletion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)
	first, err := env.service.Complete(ctx, start.AttemptID, "s1")
	require.NoError(t, err)

	before, err := env.attempts.GetByID(ctx, start.AttemptID)
	require.NoError(t, err)

	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q2", 0)
	result, ok := IsAlreadyCompleted(err)
	require.True(t, ok)
	assert.Equal(t, first.Score, result.Score)

	env.clock.Advance(time.Hour)
	_, err = env.service.Complete(ctx, start.AttemptID, "s1")
	result, ok = IsAlreadyCompleted(err)
	require.True(t, ok)
	assert.Equal(t, first.CompletedAt, result.CompletedAt)
	assert.False(t, result.TimeExpired)

	after, err := env.attempts.GetByID(ctx, start.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, before.Answers, after.Answers)
	assert.Equal(t, before.Score, after.Score)
	assert.Equal(t, before.DetailedResults, after.DetailedResults)
	assert.Equal(t, before.CompletedAt, after.CompletedAt)
}

func TestAttemptService_CompleteAfterExpiry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 1))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Minute)
	result, err := env.service.Complete(ctx, start.AttemptID, "s1")
	require.NoError(t, err)
	assert.True(t, result.TimeExpired)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 50, result.Percentage)
}

func TestAttemptService_ConcurrentComplete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))

	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.Complete(ctx, start.AttemptID, "s1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			stored, ok := IsAlreadyCompleted(err)
			if assert.True(t, ok) && assert.NotNil(t, stored) {
				assert.Equal(t, 1, stored.Score)
				losses++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, losses)
	assert.Len(t, env.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
}

func TestAttemptService_AnswerRacingCompletion(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		env := newTestEnv(t, twoQuestionTest("t1", 10))
		start, err := env.service.Start(ctx, "s1", "t1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		var answerErr error
		var result *CompletionResult
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, answerErr = env.service.RecordAnswer(ctx, start.AttemptID, "s1", "q1", 1)
		}()
		go func() {
			defer wg.Done()
			result, err = env.service.Complete(ctx, start.AttemptID, "s1")
		}()
		wg.Wait()
		require.NoError(t, err)

		stored, getErr := env.attempts.GetByID(ctx, start.AttemptID)
		require.NoError(t, getErr)

		// either the answer landed before completion and was scored, or it was rejected
		if answerErr == nil {
			assert.Equal(t, 1, result.Score)
			assert.Equal(t, models.AnswerMap{"q1": 1}, stored.Answers)
		} else {
			assert.ErrorIs(t, answerErr, ErrAttemptAlreadyCompleted)
			assert.Equal(t, 0, result.Score)
			assert.Empty(t, stored.Answers)
		}
		assert.Equal(t, result.Score, stored.Score)
	}
}

func TestAttemptService_GetByID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))
	start, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)

	tests := []struct {
		name      string
		principal models.Principal
		visible   bool
	}{
		{"owner student", models.Principal{ID: "s1", Role: models.RoleStudent}, true},
		{"other student", models.Principal{ID: "s2", Role: models.RoleStudent}, false},
		{"owning teacher", models.Principal{ID: "teacher-1", Role: models.RoleTeacher}, true},
		{"other teacher", models.Principal{ID: "teacher-2", Role: models.RoleTeacher}, false},
		{"admin", models.Principal{ID: "root", Role: models.RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempt, err := env.service.GetByID(ctx, start.AttemptID, tt.principal)
			if tt.visible {
				require.NoError(t, err)
				assert.Equal(t, start.AttemptID, attempt.ID)
			} else {
				assert.ErrorIs(t, err, ErrAttemptNotFound)
			}
		})
	}
}

func TestAttemptService_List(t *testing.T) {
	ctx := context.Background()
	other := twoQuestionTest("t2", 10)
	other.CreatedBy = "teacher-2"
	env := newTestEnv(t, twoQuestionTest("t1", 10), other)

	_, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	_, err = env.service.Start(ctx, "s2", "t1")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	_, err = env.service.Start(ctx, "s1", "t2")
	require.NoError(t, err)

	t.Run("student sees own attempts newest first", func(t *testing.T) {
		resp, err := env.service.List(ctx, models.Principal{ID: "s1", Role: models.RoleStudent}, ListAttemptsRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Attempts, 2)
		assert.Equal(t, "t2", resp.Attempts[0].TestDefinitionID)
		assert.Equal(t, defaultListLimit, resp.Limit)
	})

	t.Run("teacher sees attempts on own tests", func(t *testing.T) {
		resp, err := env.service.List(ctx, models.Principal{ID: "teacher-1", Role: models.RoleTeacher}, ListAttemptsRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)
		for _, a := range resp.Attempts {
			assert.Equal(t, "t1", a.TestDefinitionID)
		}
	})

	t.Run("teacher without tests sees nothing", func(t *testing.T) {
		resp, err := env.service.List(ctx, models.Principal{ID: "teacher-3", Role: models.RoleTeacher}, ListAttemptsRequest{})
		require.NoError(t, err)
		assert.Empty(t, resp.Attempts)
	})

	t.Run("admin sees all with filters", func(t *testing.T) {
		testID := "t1"
		resp, err := env.service.List(ctx, models.Principal{ID: "root", Role: models.RoleAdmin},
			ListAttemptsRequest{TestDefinitionID: &testID, Limit: 1000})
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)
		assert.Equal(t, maxListLimit, resp.Limit)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := env.service.List(ctx, models.Principal{ID: "x", Role: "guest"}, ListAttemptsRequest{})
		assert.True(t, IsForbidden(err))
	})
}

func TestAttemptService_ExpireOverdue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 5), twoQuestionTest("t2", 60))

	short, err := env.service.Start(ctx, "s1", "t1")
	require.NoError(t, err)
	_, err = env.service.RecordAnswer(ctx, short.AttemptID, "s1", "q1", 1)
	require.NoError(t, err)
	long, err := env.service.Start(ctx, "s1", "t2")
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	closed, err := env.service.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	stored, err := env.attempts.GetByID(ctx, short.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, stored.Status)
	assert.Equal(t, models.EndReasonTimeExpired, *stored.EndReason)
	assert.Equal(t, 1, stored.Score)

	untouched, err := env.attempts.GetByID(ctx, long.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, untouched.Status)

	closed, err = env.service.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestExpirySweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 1))

	for i := 0; i < 5; i++ {
		_, err := env.service.Start(ctx, fmt.Sprintf("s%d", i), "t1")
		require.NoError(t, err)
	}
	env.clock.Advance(2 * time.Minute)

	sweeper := NewExpirySweeper(env.service, time.Minute, 2, discardLogger())
	assert.Equal(t, 5, sweeper.Sweep(ctx))
	assert.Zero(t, sweeper.Sweep(ctx))
}

func TestExpirySweeper_RunDisabled(t *testing.T) {
	env := newTestEnv(t, twoQuestionTest("t1", 1))

	for _, interval := range []time.Duration{0, -time.Second} {
		t.Run(interval.String(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			sweeper := NewExpirySweeper(env.service, interval, 10, discardLogger())
			done := make(chan struct{})
			assert.NotPanics(t, func() {
				sweeper.Run(ctx)
				close(done)
			})

			select {
			case <-done:
			default:
				t.Fatal("disabled sweeper should return immediately")
			}
			assert.NoError(t, ctx.Err(), "Run should not wait for cancellation")
		})
	}
}

func TestAttemptService_CompleteKeepsStartSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoQuestionTest("t1", 10))

	// started while the test still had three questions
	now := env.clock.Now()
	require.NoError(t, env.attempts.Create(ctx, &models.Attempt{
		ID:               "legacy",
		TestDefinitionID: "t1",
		StudentID:        "s1",
		Status:           models.AttemptInProgress,
		StartTime:        now,
		EndTime:          now.Add(10 * time.Minute),
		Answers:          models.AnswerMap{"q1": 1},
		TotalQuestions:   3,
		Version:          1,
	}))

	result, err := env.service.Complete(ctx, "legacy", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalQuestions)
	assert.Equal(t, 50, result.Percentage)

	stored, err := env.attempts.GetByID(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TotalQuestions)
	assert.Equal(t, 2, stored.ResultTotal())

	_, err = env.service.Complete(ctx, "legacy", "s1")
	stale, ok := IsAlreadyCompleted(err)
	require.True(t, ok)
	require.NotNil(t, stale)
	assert.Equal(t, 2, stale.TotalQuestions)
	assert.Equal(t, 50, stale.Percentage)
}
