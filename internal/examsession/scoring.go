package examsession

import (
	"math"

	"github.com/scienceprep/exam-backend/internal/model"
)

// Grading is the automatic evaluation of one attempt.
type Grading struct {
	Answers  []model.AnswerRecord
	Score    int
	MaxScore int
}

// Grade walks the questions in exam order. Every question contributes its
// weight to MaxScore; only a multiple-choice answer equal to the correct
// index contributes to Score. Free-text answers are recorded for manual
// review and never scored here.
func Grade(exam *model.Exam, answers map[string]Answer) Grading {
	g := Grading{Answers: make([]model.AnswerRecord, 0, len(exam.Questions))}

	for i := range exam.Questions {
		q := &exam.Questions[i]
		a := answers[q.ID]
		points := q.Weight()
		g.MaxScore += points

		g.Answers = append(g.Answers, model.AnswerRecord{
			QuestionID: q.ID,
			Answer:     recorded(q, a),
		})

		if q.IsMultipleChoice() && a.Choice != nil && q.CorrectOptionIndex != nil &&
			*a.Choice == *q.CorrectOptionIndex {
			g.Score += points
		}
	}
	return g
}

// Percentage returns score/maxScore as a rounded percentage, 0 when maxScore is 0.
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(float64(score) * 100 / float64(maxScore)))
}
