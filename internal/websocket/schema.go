package websocket

import (
	"github.com/scienceprep/exam-backend/internal/examsession"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionSubmit Action = "submit"
	ActionLeave  Action = "leave"
	ActionPing   Action = "ping"
)

// RequestEnvelope carries every client message; fields are used per action.
type RequestEnvelope struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	Choice     *int   `json:"choice,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Answer converts an answer action into the session's answer value.
func (r *RequestEnvelope) Answer() examsession.Answer {
	return examsession.Answer{Choice: r.Choice, Text: r.Text}
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse pushes the attempt view after every change and countdown step.
type StateResponse struct {
	Event Event            `json:"event"`
	View  examsession.View `json:"view"`
}

// SubmittedResponse confirms the attempt was stored.
type SubmittedResponse struct {
	Event    Event            `json:"event"`
	View     examsession.View `json:"view"`
	ResultID string           `json:"result_id"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
