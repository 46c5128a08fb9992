package examsession

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/scienceprep/exam-backend/internal/model"
)

// Answer is a student's response. Choice is used by multiple-choice
// questions (nil = unanswered), Text by free-text questions.
type Answer struct {
	Choice *int   `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Choice builds a multiple-choice answer.
func Choice(index int) Answer {
	return Answer{Choice: &index}
}

// Text builds a free-text answer.
func Text(s string) Answer {
	return Answer{Text: s}
}

// answered applies the per-type "answered" rule.
func answered(q *model.Question, a Answer) bool {
	if q.IsMultipleChoice() {
		return a.Choice != nil
	}
	return strings.TrimSpace(a.Text) != ""
}

// recorded renders the answer the way it is stored in an ExamResult.
func recorded(q *model.Question, a Answer) string {
	if q.IsMultipleChoice() {
		if a.Choice == nil {
			return ""
		}
		return strconv.Itoa(*a.Choice)
	}
	return a.Text
}

// AnswerSheet holds the current response for every question of one exam.
// Every write publishes an immutable copy so readers racing with the timer
// always see the latest answers.
type AnswerSheet struct {
	mu        sync.Mutex
	questions map[string]*model.Question
	values    map[string]Answer
	frozen    bool

	latest atomic.Pointer[map[string]Answer]
}

// NewAnswerSheet seeds every question as unanswered: a nil choice for
// multiple-choice, an empty string for free-text.
func NewAnswerSheet(questions []model.Question) *AnswerSheet {
	s := &AnswerSheet{
		questions: make(map[string]*model.Question, len(questions)),
		values:    make(map[string]Answer, len(questions)),
	}
	for i := range questions {
		q := &questions[i]
		s.questions[q.ID] = q
		s.values[q.ID] = Answer{}
	}
	s.publish()
	return s
}

// Set overwrites the answer for one question. Unknown ids and writes after
// Freeze leave the sheet untouched.
func (s *AnswerSheet) Set(questionID string, a Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return ErrAlreadySubmitted
	}
	q, ok := s.questions[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	if q.IsMultipleChoice() {
		if a.Choice != nil && (*a.Choice < 0 || *a.Choice >= len(q.Options)) {
			return ErrInvalidChoice
		}
		a.Text = ""
	} else {
		a.Choice = nil
	}

	s.values[questionID] = a
	s.publish()
	return nil
}

// Restore applies saved answers for known questions, skipping invalid ones.
func (s *AnswerSheet) Restore(saved map[string]Answer) int {
	applied := 0
	for qid, a := range saved {
		if err := s.Set(qid, a); err == nil {
			applied++
		}
	}
	return applied
}

// Get returns the current answer for a question.
func (s *AnswerSheet) Get(questionID string) (Answer, bool) {
	a, ok := (*s.latest.Load())[questionID]
	return a, ok
}

// Answered reports whether the question has a meaningful response.
func (s *AnswerSheet) Answered(questionID string) bool {
	q, ok := s.questions[questionID]
	if !ok {
		return false
	}
	a, _ := s.Get(questionID)
	return answered(q, a)
}

// Progress returns the number of answered questions and the total.
func (s *AnswerSheet) Progress() (done, total int) {
	snap := s.Snapshot()
	for qid, q := range s.questions {
		if answered(q, snap[qid]) {
			done++
		}
	}
	return done, len(s.questions)
}

// Snapshot returns the latest published answers. The map must not be modified.
func (s *AnswerSheet) Snapshot() map[string]Answer {
	return *s.latest.Load()
}

// Freeze rejects every later write.
func (s *AnswerSheet) Freeze() {
	s.mu.Lock()
	s.frozen = true
	s.mu.Unlock()
}

func (s *AnswerSheet) publish() {
	snap := make(map[string]Answer, len(s.values))
	for k, v := range s.values {
		snap[k] = v
	}
	s.latest.Store(&snap)
}
