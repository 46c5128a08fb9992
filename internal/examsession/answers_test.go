package examsession

import (
	"errors"
	"testing"

	"github.com/scienceprep/exam-backend/internal/model"
)

func intPtr(v int) *int { return &v }

func sampleQuestions() []model.Question {
	return []model.Question{
		{ID: "q1", Type: model.QuestionTypeMultipleChoice, Prompt: "Pick B", Options: []string{"A", "B"}, CorrectOptionIndex: intPtr(1), Points: 2},
		{ID: "q2", Type: model.QuestionTypeFreeText, Prompt: "Explain", Points: 1},
	}
}

func TestAnswerSheetSeedsEmpty(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())

	done, total := s.Progress()
	if done != 0 || total != 2 {
		t.Fatalf("Progress() = (%d, %d), want (0, 2)", done, total)
	}
	a, ok := s.Get("q1")
	if !ok || a.Choice != nil {
		t.Errorf("q1 seeded as %+v, want nil choice", a)
	}
	a, ok = s.Get("q2")
	if !ok || a.Text != "" {
		t.Errorf("q2 seeded as %+v, want empty text", a)
	}
}

func TestAnswerSheetSet(t *testing.T) {
	tests := []struct {
		name         string
		questionID   string
		answer       Answer
		wantErr      error
		wantAnswered bool
	}{
		{"choice", "q1", Choice(0), nil, true},
		{"clear choice", "q1", Answer{}, nil, false},
		{"choice out of range", "q1", Choice(2), ErrInvalidChoice, false},
		{"negative choice", "q1", Choice(-1), ErrInvalidChoice, false},
		{"text", "q2", Text("because"), nil, true},
		{"blank text", "q2", Text("   "), nil, false},
		{"unknown question", "q9", Choice(0), ErrUnknownQuestion, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAnswerSheet(sampleQuestions())
			err := s.Set(tt.questionID, tt.answer)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Set() error = %v, want %v", err, tt.wantErr)
			}
			if got := s.Answered(tt.questionID); got != tt.wantAnswered {
				t.Errorf("Answered() = %v, want %v", got, tt.wantAnswered)
			}
		})
	}
}

func TestAnswerSheetUnknownIsNoOp(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())
	before := s.Snapshot()

	_ = s.Set("nope", Text("x"))

	after := s.Snapshot()
	if len(after) != len(before) {
		t.Errorf("snapshot size changed from %d to %d", len(before), len(after))
	}
	if _, ok := after["nope"]; ok {
		t.Error("unknown question was added to the sheet")
	}
}

func TestAnswerSheetNormalizesByType(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())
	_ = s.Set("q1", Answer{Choice: intPtr(1), Text: "stray"})
	_ = s.Set("q2", Answer{Choice: intPtr(0), Text: "essay"})

	if a, _ := s.Get("q1"); a.Text != "" {
		t.Errorf("q1 kept text %q", a.Text)
	}
	if a, _ := s.Get("q2"); a.Choice != nil {
		t.Errorf("q2 kept choice %d", *a.Choice)
	}
}

func TestAnswerSheetSnapshotIsStable(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())
	_ = s.Set("q2", Text("first"))
	snap := s.Snapshot()

	_ = s.Set("q2", Text("second"))

	if snap["q2"].Text != "first" {
		t.Errorf("earlier snapshot changed to %q", snap["q2"].Text)
	}
	if s.Snapshot()["q2"].Text != "second" {
		t.Error("latest snapshot missing the newest answer")
	}
}

func TestAnswerSheetFreeze(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())
	_ = s.Set("q1", Choice(1))
	s.Freeze()

	if err := s.Set("q1", Choice(0)); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("Set after Freeze error = %v, want ErrAlreadySubmitted", err)
	}
	if a, _ := s.Get("q1"); a.Choice == nil || *a.Choice != 1 {
		t.Error("frozen answer changed")
	}
}

func TestAnswerSheetRestore(t *testing.T) {
	s := NewAnswerSheet(sampleQuestions())
	n := s.Restore(map[string]Answer{
		"q1":   Choice(1),
		"q2":   Text("kept"),
		"gone": Text("dropped"),
	})

	if n != 2 {
		t.Errorf("Restore() = %d, want 2", n)
	}
	if done, _ := s.Progress(); done != 2 {
		t.Errorf("Progress() done = %d, want 2", done)
	}
}
