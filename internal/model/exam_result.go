package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord echoes one question's response in an ExamResult.
type AnswerRecord struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ExamResult is a finished attempt. ID and SubmittedAt are assigned by the store.
type ExamResult struct {
	ID           uuid.UUID      `json:"id"`
	ExamID       uuid.UUID      `json:"exam_id"`
	StudentPhone *string        `json:"student_phone,omitempty"`
	StudentName  *string        `json:"student_name,omitempty"`
	Answers      []AnswerRecord `json:"answers"`
	Score        int            `json:"score"`
	MaxScore     int            `json:"max_score"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// ResultStats aggregates the results of one exam.
type ResultStats struct {
	ExamID   uuid.UUID `json:"exam_id"`
	Attempts int       `json:"attempts"`
	Average  float64   `json:"average"`
	Highest  int       `json:"highest"`
	Lowest   int       `json:"lowest"`
}
