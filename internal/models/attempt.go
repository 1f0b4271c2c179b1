package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

type EndReason string

const (
	EndReasonSubmitted   EndReason = "submitted"
	EndReasonTimeExpired EndReason = "time_expired"
)

type Attempt struct {
	ID               string        `json:"attemptId" gorm:"primaryKey;size:36" bson:"_id"`
	TestDefinitionID string        `json:"testDefinitionId" gorm:"not null;size:64;index" bson:"test_definition_id"`
	StudentID        string        `json:"studentId" gorm:"not null;size:255;index" bson:"student_id"`
	Status           AttemptStatus `json:"status" gorm:"not null;size:20;default:in_progress;index" bson:"status"`

	// Timing
	StartTime   time.Time  `json:"startTime" gorm:"not null" bson:"start_time"`
	EndTime     time.Time  `json:"endTime" gorm:"not null;index" bson:"end_time"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	EndReason   *EndReason `json:"endReason,omitempty" gorm:"size:20" bson:"end_reason,omitempty"`

	Answers AnswerMap `json:"answers" gorm:"type:jsonb;not null" bson:"answers"`

	// Scoring
	Score           int                                 `json:"score" gorm:"not null;default:0" bson:"score"`
	TotalQuestions  int                                 `json:"totalQuestions" gorm:"not null" bson:"total_questions"`
	DetailedResults datatypes.JSONSlice[DetailedResult] `json:"detailedResults,omitempty" gorm:"type:jsonb" bson:"detailed_results,omitempty"`

	// Bumped on every write; completion is conditional on it.
	Version int `json:"-" gorm:"not null;default:1" bson:"version"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

type DetailedResult struct {
	QuestionID    string   `json:"questionId" bson:"question_id"`
	Question      string   `json:"question" bson:"question"`
	Options       []string `json:"options" bson:"options"`
	StudentAnswer *int     `json:"studentAnswer,omitempty" bson:"student_answer,omitempty"`
	CorrectAnswer int      `json:"correctAnswer" bson:"correct_answer"`
	IsCorrect     bool     `json:"isCorrect" bson:"is_correct"`
	Explanation   string   `json:"explanation" bson:"explanation"`
}

func (Attempt) TableName() string {
	return "test_attempts"
}

func (a *Attempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}

// IsExpired reports whether an in-progress attempt has run past its end time.
func (a *Attempt) IsExpired(now time.Time) bool {
	return a.Status == AttemptInProgress && now.After(a.EndTime)
}

// Clone returns a deep copy so stores never share maps or slices with callers.
func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	c.Answers = maps.Clone(a.Answers)
	if c.Answers == nil {
		c.Answers = AnswerMap{}
	}
	c.DetailedResults = CloneDetailedResults(a.DetailedResults)
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		c.CompletedAt = &t
	}
	if a.EndReason != nil {
		r := *a.EndReason
		c.EndReason = &r
	}
	return &c
}

// CloneDetailedResults deep-copies results, including options and answers.
func CloneDetailedResults(in datatypes.JSONSlice[DetailedResult]) datatypes.JSONSlice[DetailedResult] {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSONSlice[DetailedResult], len(in))
	for i, r := range in {
		r.Options = slices.Clone(r.Options)
		if r.StudentAnswer != nil {
			answer := *r.StudentAnswer
			r.StudentAnswer = &answer
		}
		out[i] = r
	}
	return out
}

// ResultTotal is the question count a score is out of. Completed attempts
// hold one detailed result per question of the definition at completion;
// before that it is the snapshot taken at start.
func (a *Attempt) ResultTotal() int {
	if a.IsCompleted() {
		return len(a.DetailedResults)
	}
	return a.TotalQuestions
}

// AnswerMap maps question id to the submitted option index.
type AnswerMap map[string]int

func (m AnswerMap) Lookup(questionID string) (int, bool) {
	v, ok := m[questionID]
	return v, ok
}

func (m AnswerMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *AnswerMap) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = AnswerMap{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan AnswerMap from %T", value)
	}
	result := AnswerMap{}
	if err := json.Unmarshal(data, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

func (AnswerMap) GormDataType() string {
	return "jsonb"
}
