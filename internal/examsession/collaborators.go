// Package examsession owns the lifecycle of exam attempts: the countdown,
// answer collection, grading, and the single guarded submission.
package examsession

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/model"
)

// Domain errors.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrUnknownQuestion    = errors.New("unknown question")
	ErrInvalidChoice      = errors.New("choice out of range")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSubmissionFailed   = errors.New("submission failed")
	ErrSessionClosed      = errors.New("attempt abandoned")
)

// ExamCatalog provides exam definitions. Missing exams yield ErrExamNotFound.
type ExamCatalog interface {
	GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
}

// ResultSink persists finished attempts. Implementations assign the result
// id and SubmittedAt; a failed call must leave nothing behind.
type ResultSink interface {
	SubmitResult(ctx context.Context, result *model.ExamResult) (uuid.UUID, error)
}

// Identity is the best-effort student identity attached to a result.
// Level decides which exams the student may open.
type Identity struct {
	Name  string
	Phone string
	Level model.PrepLevel
}

// Key identifies the student for attempt bookkeeping.
func (i Identity) Key() string {
	if p := strings.TrimSpace(i.Phone); p != "" {
		return "phone:" + p
	}
	return "name:" + strings.TrimSpace(i.Name)
}

// IdentitySource supplies the current student. Both fields may be empty.
type IdentitySource interface {
	CurrentStudent(ctx context.Context) Identity
}

// StaticIdentity is an IdentitySource fixed at construction.
type StaticIdentity Identity

// CurrentStudent implements IdentitySource.
func (s StaticIdentity) CurrentStudent(context.Context) Identity {
	return Identity(s)
}

// DraftStore mirrors in-progress answers so a reopened attempt resumes
// instead of starting blank.
type DraftStore interface {
	LoadDraft(ctx context.Context, examID uuid.UUID, studentKey string) (map[string]Answer, error)
	SaveAnswer(ctx context.Context, examID uuid.UUID, studentKey, questionID string, answer Answer) error
	ClearDraft(ctx context.Context, examID uuid.UUID, studentKey string) error
}
