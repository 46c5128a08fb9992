package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QuestionType tags the variant a Question carries.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeFreeText       QuestionType = "free-text"
)

// PromptType selects how the prompt is presented.
type PromptType string

const (
	PromptTypeText  PromptType = "text"
	PromptTypeImage PromptType = "image"
)

// Question is a tagged union over multiple-choice and free-text questions.
// Options and CorrectOptionIndex are only meaningful for multiple-choice.
type Question struct {
	ID                 string       `json:"id"`
	Type               QuestionType `json:"type"`
	PromptType         PromptType   `json:"prompt_type,omitempty"`
	Prompt             string       `json:"prompt"`
	PromptImageURL     string       `json:"prompt_image_url,omitempty"`
	Options            []string     `json:"options,omitempty"`
	CorrectOptionIndex *int         `json:"correct_option_index,omitempty"`
	Points             int          `json:"points,omitempty"`
}

// Weight returns the question's points, defaulting to 1 when unset.
func (q *Question) Weight() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// PromptKind returns the effective prompt type; text when unset.
func (q *Question) PromptKind() PromptType {
	if q.PromptType == "" {
		return PromptTypeText
	}
	return q.PromptType
}

// IsMultipleChoice reports whether q is the multiple-choice variant.
func (q *Question) IsMultipleChoice() bool {
	return q.Type == QuestionTypeMultipleChoice
}

// Validate enforces the variant rules of the union.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("question id is required")
	}
	switch q.PromptKind() {
	case PromptTypeText:
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %s: prompt is required", q.ID)
		}
	case PromptTypeImage:
		if strings.TrimSpace(q.PromptImageURL) == "" {
			return fmt.Errorf("question %s: prompt image url is required", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown prompt type %q", q.ID, q.PromptType)
	}
	if q.Points < 0 {
		return fmt.Errorf("question %s: points must not be negative", q.ID)
	}

	switch q.Type {
	case QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s: at least two options are required", q.ID)
		}
		if q.CorrectOptionIndex != nil && (*q.CorrectOptionIndex < 0 || *q.CorrectOptionIndex >= len(q.Options)) {
			return fmt.Errorf("question %s: correct option index out of range", q.ID)
		}
	case QuestionTypeFreeText:
		if len(q.Options) > 0 || q.CorrectOptionIndex != nil {
			return fmt.Errorf("question %s: free-text questions take no options", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return nil
}

// QuestionForStudent is a question without the answer key.
type QuestionForStudent struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	PromptType     PromptType   `json:"prompt_type"`
	Prompt         string       `json:"prompt"`
	PromptImageURL string       `json:"prompt_image_url,omitempty"`
	Options        []string     `json:"options,omitempty"`
	Points         int          `json:"points"`
}

// QuestionInput is the admin-side question payload. ID is generated when empty.
type QuestionInput struct {
	ID                 string       `json:"id" binding:"omitempty,max=64"`
	Type               QuestionType `json:"type" binding:"required,oneof=multiple-choice free-text"`
	PromptType         PromptType   `json:"prompt_type" binding:"omitempty,oneof=text image"`
	Prompt             string       `json:"prompt" binding:"max=4000"`
	PromptImageURL     string       `json:"prompt_image_url" binding:"omitempty,url"`
	Options            []string     `json:"options" binding:"omitempty,max=10,dive,max=500"`
	CorrectOptionIndex *int         `json:"correct_option_index" binding:"omitempty,min=0"`
	Points             int          `json:"points" binding:"omitempty,min=1,max=100"`
}

// ToQuestion converts the input into a validated Question.
func (in QuestionInput) ToQuestion() (Question, error) {
	q := Question{
		ID:                 in.ID,
		Type:               in.Type,
		PromptType:         in.PromptType,
		Prompt:             in.Prompt,
		PromptImageURL:     in.PromptImageURL,
		Options:            in.Options,
		CorrectOptionIndex: in.CorrectOptionIndex,
		Points:             in.Points,
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.Type == QuestionTypeFreeText {
		q.Options = nil
		q.CorrectOptionIndex = nil
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// BuildQuestions converts inputs and rejects duplicate ids.
func BuildQuestions(inputs []QuestionInput) ([]Question, error) {
	questions := make([]Question, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		q, err := in.ToQuestion()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = struct{}{}
		questions = append(questions, q)
	}
	return questions, nil
}
