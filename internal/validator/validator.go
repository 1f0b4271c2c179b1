package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/test-attempt-service/internal/errors"
	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	ActionSubmitAnswer = "submit_answer"
	ActionCompleteTest = "complete_test"
)

// Validator is the main validator instance that combines all validation types
type Validator struct {
	structValidator     *validator.Validate
	definitionValidator *DefinitionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:     structValidator,
		definitionValidator: NewDefinitionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures into ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// ValidateDefinition runs struct tags plus the cross-field definition rules
func (v *Validator) ValidateDefinition(def *models.TestDefinition) error {
	if err := v.Validate(def); err != nil {
		return err
	}
	if errs := v.definitionValidator.Validate(def); len(errs) > 0 {
		return errs
	}
	return nil
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("attempt_action", validateAttemptAction)
	validate.RegisterValidation("question_id", validateQuestionID)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateAttemptAction(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case ActionSubmitAnswer, ActionCompleteTest:
		return true
	}
	return false
}

// validateQuestionID leaves emptiness to required/required_if.
func validateQuestionID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id == "" || models.IsValidQuestionID(id)
}
