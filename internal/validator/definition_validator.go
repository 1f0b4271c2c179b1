package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/test-attempt-service/internal/errors"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
)

// DefinitionValidator enforces the invariants struct tags cannot express:
// unique question ids and an in-range correct answer for every question.
type DefinitionValidator struct{}

func NewDefinitionValidator() *DefinitionValidator {
	return &DefinitionValidator{}
}

func (v *DefinitionValidator) Validate(def *models.TestDefinition) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors
	if def == nil {
		return append(errs, *apperrors.NewValidationError("definition", "is required", nil))
	}

	seen := make(map[string]int, len(def.Questions))
	for i := range def.Questions {
		q := &def.Questions[i]
		if first, dup := seen[q.ID]; dup && q.ID != "" {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(
				fmt.Sprintf("questions[%d].questionId", i),
				fmt.Sprintf("duplicates questions[%d]", first),
				"unique", q.ID))
		} else {
			seen[q.ID] = i
		}

		if err := v.ValidateCorrectAnswer(q); err != nil {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(
				fmt.Sprintf("questions[%d].correctAnswer", i),
				err.Error(), "option_index", q.CorrectAnswer))
		}
	}

	return errs
}

// ValidateCorrectAnswer checks the correct answer indexes one of the options
func (v *DefinitionValidator) ValidateCorrectAnswer(q *models.Question) error {
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return fmt.Errorf("must be between 0 and %d", len(q.Options)-1)
	}
	return nil
}
