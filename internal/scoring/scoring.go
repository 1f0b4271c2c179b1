// Package scoring grades a set of submitted answers against a test definition.
// It performs no I/O and never mutates its inputs.
package scoring

import (
	"math"
	"slices"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

type Outcome struct {
	Score           int
	TotalQuestions  int
	DetailedResults []models.DetailedResult
}

// Score compares answers to every question of the definition, in definition order.
// Unanswered questions are never correct; comparison is exact index equality.
func Score(definition *models.TestDefinition, answers models.AnswerMap) Outcome {
	outcome := Outcome{
		TotalQuestions:  len(definition.Questions),
		DetailedResults: make([]models.DetailedResult, 0, len(definition.Questions)),
	}

	for i := range definition.Questions {
		question := &definition.Questions[i]
		result := models.DetailedResult{
			QuestionID:    question.ID,
			Question:      question.Text,
			Options:       slices.Clone(question.Options),
			CorrectAnswer: question.CorrectAnswer,
			Explanation:   question.ExplanationOrDefault(),
		}

		if answer, ok := answers.Lookup(question.ID); ok {
			result.StudentAnswer = &answer
			result.IsCorrect = answer == question.CorrectAnswer
		}
		if result.IsCorrect {
			outcome.Score++
		}

		outcome.DetailedResults = append(outcome.DetailedResults, result)
	}

	return outcome
}

// Percentage is score/total*100 rounded to the nearest integer; 0 for an empty test.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}
