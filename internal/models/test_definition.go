package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const NoExplanationProvided = "No explanation provided"

type TestDefinition struct {
	ID          string  `json:"testDefinitionId" gorm:"primaryKey;size:64" bson:"_id"`
	Title       string  `json:"title" gorm:"not null;size:200;index" bson:"title" validate:"required,min=1,max=200"`
	Description *string `json:"description,omitempty" gorm:"type:text" bson:"description,omitempty" validate:"omitempty,max=1000"`
	Duration    int     `json:"duration" gorm:"not null" bson:"duration" validate:"min=0,max=600"` // minutes

	CreatedBy string `json:"createdBy" gorm:"not null;index;size:255" bson:"created_by"`

	Questions datatypes.JSONSlice[Question] `json:"questions" gorm:"type:jsonb;not null" bson:"questions" validate:"required,min=1,dive"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type Question struct {
	ID            string   `json:"questionId" bson:"question_id" validate:"required,max=64,question_id"`
	Text          string   `json:"question" bson:"text" validate:"required"`
	Options       []string `json:"options" bson:"options" validate:"min=2,max=6,dive,required"`
	CorrectAnswer int      `json:"correctAnswer" bson:"correct_answer" validate:"min=0"`
	Explanation   *string  `json:"explanation,omitempty" bson:"explanation,omitempty"`
}

func (TestDefinition) TableName() string {
	return "test_definitions"
}

// Duration as a time.Duration; the stored value is whole minutes.
func (d *TestDefinition) TimeLimit() time.Duration {
	return time.Duration(d.Duration) * time.Minute
}

func (d *TestDefinition) QuestionCount() int {
	return len(d.Questions)
}

func (q *Question) ExplanationOrDefault() string {
	if q.Explanation == nil || *q.Explanation == "" {
		return NoExplanationProvided
	}
	return *q.Explanation
}

// IsValidQuestionID reports whether id can be used as a key in a stored
// answer map. Document stores read '.' as a path separator and reserve a
// leading '$' for operators.
func IsValidQuestionID(id string) bool {
	return id != "" && !strings.HasPrefix(id, "$") && !strings.ContainsAny(id, ".\x00")
}
