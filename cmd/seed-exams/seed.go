package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/scienceprep/exam-backend/internal/model"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Exams []seedExam `yaml:"exams"`
}

type seedExam struct {
	Title            string         `yaml:"title"`
	Description      string         `yaml:"description"`
	Level            string         `yaml:"level"`
	TimeLimitMinutes *int           `yaml:"time_limit_minutes"`
	Published        bool           `yaml:"published"`
	Questions        []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	ID      string   `yaml:"id"`
	Type    string   `yaml:"type"`
	Prompt  string   `yaml:"prompt"`
	Image   string   `yaml:"image"`
	Options []string `yaml:"options"`
	Correct *int     `yaml:"correct"`
	Points  int      `yaml:"points"`
}

// loadSeed decodes and validates exam definitions. Every exam is checked
// before any is returned, so a bad file inserts nothing.
func loadSeed(r io.Reader) ([]model.CreateExamRequest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file seedFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if len(file.Exams) == 0 {
		return nil, errors.New("seed file has no exams")
	}

	reqs := make([]model.CreateExamRequest, 0, len(file.Exams))
	for i, e := range file.Exams {
		req, err := e.request()
		if err != nil {
			return nil, fmt.Errorf("exam %d (%q): %w", i+1, e.Title, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (e seedExam) request() (model.CreateExamRequest, error) {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return model.CreateExamRequest{}, errors.New("title is required")
	}
	level := model.PrepLevel(e.Level)
	if !level.Valid() {
		return model.CreateExamRequest{}, fmt.Errorf("unknown level %q", e.Level)
	}
	if e.TimeLimitMinutes != nil && *e.TimeLimitMinutes <= 0 {
		return model.CreateExamRequest{}, errors.New("time_limit_minutes must be positive")
	}

	inputs := make([]model.QuestionInput, len(e.Questions))
	for i, q := range e.Questions {
		in := model.QuestionInput{
			ID:                 q.ID,
			Type:               model.QuestionType(q.Type),
			Prompt:             q.Prompt,
			Options:            q.Options,
			CorrectOptionIndex: q.Correct,
			Points:             q.Points,
		}
		if q.Image != "" {
			in.PromptType = model.PromptTypeImage
			in.PromptImageURL = q.Image
		}
		inputs[i] = in
	}
	if _, err := model.BuildQuestions(inputs); err != nil {
		return model.CreateExamRequest{}, err
	}

	return model.CreateExamRequest{
		Title:            title,
		Description:      strings.TrimSpace(e.Description),
		LevelID:          level,
		Questions:        inputs,
		TimeLimitMinutes: e.TimeLimitMinutes,
		Published:        e.Published,
	}, nil
}
