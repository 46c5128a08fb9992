package model

import (
	"time"

	"github.com/google/uuid"
)

// PrepLevel identifies the student cohort an exam targets.
type PrepLevel string

const (
	PrepLevelFirst  PrepLevel = "1st-prep"
	PrepLevelSecond PrepLevel = "2nd-prep"
	PrepLevelThird  PrepLevel = "3rd-prep"
)

// PrepLevels lists every cohort in display order.
var PrepLevels = []PrepLevel{PrepLevelFirst, PrepLevelSecond, PrepLevelThird}

// Valid reports whether l is one of the known cohorts.
func (l PrepLevel) Valid() bool {
	for _, known := range PrepLevels {
		if l == known {
			return true
		}
	}
	return false
}

// Exam represents an exam definition. Question order is significant and
// fixed for the lifetime of an attempt.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	LevelID          PrepLevel  `json:"level_id"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty"`
	Published        bool       `json:"published"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TotalSeconds returns the countdown length, or false when the exam is untimed.
func (e *Exam) TotalSeconds() (int, bool) {
	if e.TimeLimitMinutes == nil || *e.TimeLimitMinutes <= 0 {
		return 0, false
	}
	return *e.TimeLimitMinutes * 60, true
}

// MaxScore sums the weight of every question.
func (e *Exam) MaxScore() int {
	total := 0
	for i := range e.Questions {
		total += e.Questions[i].Weight()
	}
	return total
}

// Paper builds the student-facing view of the exam, without answer keys.
func (e *Exam) Paper() ExamPaper {
	questions := make([]QuestionForStudent, len(e.Questions))
	for i, q := range e.Questions {
		questions[i] = QuestionForStudent{
			ID:             q.ID,
			Type:           q.Type,
			PromptType:     q.PromptKind(),
			Prompt:         q.Prompt,
			PromptImageURL: q.PromptImageURL,
			Options:        q.Options,
			Points:         q.Weight(),
		}
	}
	return ExamPaper{
		ExamID:           e.ID,
		Title:            e.Title,
		Description:      e.Description,
		LevelID:          e.LevelID,
		TimeLimitMinutes: e.TimeLimitMinutes,
		MaxScore:         e.MaxScore(),
		Questions:        questions,
	}
}

// Summary is the lobby card shown to students.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		LevelID:          e.LevelID,
		QuestionCount:    len(e.Questions),
		TimeLimitMinutes: e.TimeLimitMinutes,
	}
}

// ExamPaper is the cached payload sent to students.
type ExamPaper struct {
	ExamID           uuid.UUID            `json:"exam_id"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	LevelID          PrepLevel            `json:"level_id"`
	TimeLimitMinutes *int                 `json:"time_limit_minutes,omitempty"`
	MaxScore         int                  `json:"max_score"`
	Questions        []QuestionForStudent `json:"questions"`
}

// ExamSummary is a lightweight listing entry.
type ExamSummary struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	LevelID          PrepLevel `json:"level_id"`
	QuestionCount    int       `json:"question_count"`
	TimeLimitMinutes *int      `json:"time_limit_minutes,omitempty"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title            string          `json:"title" binding:"required,min=1,max=255"`
	Description      string          `json:"description" binding:"omitempty,max=2000"`
	LevelID          PrepLevel       `json:"level_id" binding:"required,prep_level"`
	Questions        []QuestionInput `json:"questions" binding:"omitempty,dive"`
	TimeLimitMinutes *int            `json:"time_limit_minutes" binding:"omitempty,min=1,max=600"`
	Published        bool            `json:"published"`
}

// UpdateExamRequest merges the given fields onto an existing exam.
type UpdateExamRequest struct {
	Title            *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Description      *string          `json:"description" binding:"omitempty,max=2000"`
	LevelID          *PrepLevel       `json:"level_id" binding:"omitempty,prep_level"`
	Questions        *[]QuestionInput `json:"questions" binding:"omitempty,dive"`
	TimeLimitMinutes *int             `json:"time_limit_minutes" binding:"omitempty,min=0,max=600"`
	Published        *bool            `json:"published"`
}
