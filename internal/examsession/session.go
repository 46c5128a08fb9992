package examsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/model"
)

// State is the submission state of an attempt.
type State string

const (
	StateInProgress State = "in-progress"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
)

// Trigger records what started a submission.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerExpiry Trigger = "expiry"
)

// FailureNotice is shown to the student when the result could not be stored.
const FailureNotice = "Your answers could not be submitted. Please try again."

// View is a read-only snapshot of an attempt for display.
type View struct {
	ExamID        uuid.UUID  `json:"exam_id"`
	State         State      `json:"state"`
	Timed         bool       `json:"timed"`
	SecondsLeft   *int       `json:"seconds_left"`
	Tier          Tier       `json:"tier,omitempty"`
	TimeUp        bool       `json:"time_up"`
	Answered      int        `json:"answered"`
	Total         int        `json:"total"`
	Score         *int       `json:"score,omitempty"`
	MaxScore      int        `json:"max_score"`
	Percentage    int        `json:"percentage"`
	AutoSubmitted bool       `json:"auto_submitted"`
	FailureNotice string     `json:"failure_notice,omitempty"`
	ResultID      *uuid.UUID `json:"result_id,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithTickInterval overrides the countdown step.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tickInterval = d }
}

// WithSubmitTimeout bounds each ResultSink call. Zero means no bound.
func WithSubmitTimeout(d time.Duration) Option {
	return func(s *Session) { s.submitTimeout = d }
}

// WithAnswerHook is called after every accepted answer.
func WithAnswerHook(fn func(questionID string, a Answer)) Option {
	return func(s *Session) { s.onAnswer = fn }
}

// WithSubmittedHook is called once after the result is stored.
func WithSubmittedHook(fn func(result *model.ExamResult, trigger Trigger)) Option {
	return func(s *Session) { s.onSubmitted = fn }
}

// Session is one student's attempt at one exam.
type Session struct {
	exam     *model.Exam
	identity IdentitySource
	sink     ResultSink
	sheet    *AnswerSheet
	clock    *Countdown
	log      zerolog.Logger

	tickInterval  time.Duration
	submitTimeout time.Duration
	onAnswer      func(string, Answer)
	onSubmitted   func(*model.ExamResult, Trigger)

	mu            sync.Mutex
	state         State
	score         *int
	resultID      *uuid.UUID
	autoSubmitted bool
	failure       string
	started       bool
	closed        bool
	cancelRun     context.CancelFunc
	subs          map[int]chan View
	nextSub       int

	// notifyMu orders view computation with delivery.
	notifyMu sync.Mutex
	// hookMu keeps answer hooks from running after the submitted hook or Close.
	hookMu sync.Mutex

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an in-progress attempt with every answer seeded empty.
// The countdown does not run until Start.
func New(exam *model.Exam, identity IdentitySource, sink ResultSink, opts ...Option) *Session {
	s := &Session{
		exam:     exam,
		identity: identity,
		sink:     sink,
		sheet:    NewAnswerSheet(exam.Questions),
		log:      zerolog.Nop(),
		state:    StateInProgress,
		subs:     make(map[int]chan View),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, timed := exam.TotalSeconds(); timed {
		s.clock = NewCountdown(s.tickInterval, s.expire, func(int) { s.notify() })
	}
	return s
}

// Exam returns the exam definition.
func (s *Session) Exam() *model.Exam { return s.exam }

// Answers returns the answer sheet.
func (s *Session) Answers() *AnswerSheet { return s.sheet }

// Countdown returns the countdown, or nil for untimed exams.
func (s *Session) Countdown() *Countdown { return s.clock }

// Done is closed once the attempt is submitted or abandoned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start begins the countdown for timed exams. Calling it again is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed || s.state == StateSubmitted {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	total, timed := s.exam.TotalSeconds()
	if !timed || !s.clock.Start(total) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	go s.clock.Run(runCtx)
	s.log.Debug().Int("total_seconds", total).Msg("Countdown started")
}

// SetAnswer records a response. Unknown questions are ignored and reported
// with ErrUnknownQuestion. Writes are rejected while a submission is in
// flight so the stored result always matches the sheet.
func (s *Session) SetAnswer(questionID string, a Answer) error {
	s.hookMu.Lock()
	err := s.record(questionID, a)
	s.hookMu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

func (s *Session) record(questionID string, a Answer) error {
	s.mu.Lock()
	switch s.state {
	case StateSubmitted:
		s.mu.Unlock()
		return ErrAlreadySubmitted
	case StateSubmitting:
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	err := s.sheet.Set(questionID, a)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.onAnswer != nil {
		stored, _ := s.sheet.Get(questionID)
		s.onAnswer(questionID, stored)
	}
	return nil
}

// Submit is the manual submission entry point.
func (s *Session) Submit(ctx context.Context) (*model.ExamResult, error) {
	return s.submit(ctx, TriggerManual, nil)
}

// expire is the countdown callback. It reads the answers at the moment of
// expiry and goes through the same guard as a manual submission.
func (s *Session) expire() {
	answers := s.sheet.Snapshot()
	s.log.Info().Msg("Time is up, submitting automatically")

	if _, err := s.submit(context.Background(), TriggerExpiry, answers); err != nil {
		switch {
		case errors.Is(err, ErrSubmissionInFlight), errors.Is(err, ErrAlreadySubmitted):
			s.log.Debug().Err(err).Msg("Auto-submission skipped")
		default:
			s.log.Warn().Err(err).Msg("Auto-submission failed")
		}
	}
}

func (s *Session) submit(ctx context.Context, trigger Trigger, answers map[string]Answer) (*model.ExamResult, error) {
	s.mu.Lock()
	switch {
	case s.state == StateSubmitted || s.score != nil:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.state == StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.state = StateSubmitting
	s.failure = ""
	if trigger == TriggerExpiry {
		s.autoSubmitted = true
	}
	s.mu.Unlock()
	s.notify()

	if answers == nil {
		answers = s.sheet.Snapshot()
	}
	grading := Grade(s.exam, answers)

	var who Identity
	if s.identity != nil {
		who = s.identity.CurrentStudent(ctx)
	}
	result := &model.ExamResult{
		ExamID:       s.exam.ID,
		StudentPhone: optional(who.Phone),
		StudentName:  optional(who.Name),
		Answers:      grading.Answers,
		Score:        grading.Score,
		MaxScore:     grading.MaxScore,
	}

	sinkCtx := ctx
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		sinkCtx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}

	id, err := s.sink.SubmitResult(sinkCtx, result)
	if err != nil {
		s.mu.Lock()
		s.state = StateInProgress
		s.failure = FailureNotice
		s.mu.Unlock()
		s.notify()

		s.log.Error().Err(err).Str("trigger", string(trigger)).Msg("Result submission failed")
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	result.ID = id

	s.mu.Lock()
	score := grading.Score
	s.score = &score
	s.resultID = &id
	s.state = StateSubmitted
	s.sheet.Freeze()
	if s.clock != nil {
		s.clock.Cancel()
	}
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()

	s.log.Info().
		Str("trigger", string(trigger)).
		Str("result_id", id.String()).
		Int("score", grading.Score).
		Int("max_score", grading.MaxScore).
		Msg("Attempt submitted")

	if s.onSubmitted != nil {
		s.hookMu.Lock()
		s.onSubmitted(result, trigger)
		s.hookMu.Unlock()
	}
	s.notify()
	s.finish()
	return result, nil
}

// Close abandons the attempt: the countdown stops and nothing is stored.
// Closing a submitted attempt only releases its subscribers.
func (s *Session) Close() {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.clock != nil && s.state != StateSubmitted {
		s.clock.Cancel()
	}
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()
	s.finish()
}

// Closed reports whether the attempt was abandoned.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// onTheClock reports whether the attempt is timed, started and not yet
// submitted. An expired attempt whose auto-submission failed still counts.
func (s *Session) onTheClock() bool {
	if s.clock == nil {
		return false
	}
	s.mu.Lock()
	submitted := s.state == StateSubmitted
	s.mu.Unlock()
	if submitted {
		return false
	}
	switch s.clock.State() {
	case CountdownRunning, CountdownExpired:
		return true
	}
	return false
}

// View returns the current display state. Remaining time is hidden once
// the attempt is submitted.
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ExamID:        s.exam.ID,
		State:         s.state,
		Timed:         s.clock != nil,
		MaxScore:      s.exam.MaxScore(),
		AutoSubmitted: s.autoSubmitted,
		FailureNotice: s.failure,
		ResultID:      s.resultID,
	}
	if s.score != nil {
		score := *s.score
		v.Score = &score
		v.Percentage = Percentage(score, v.MaxScore)
	}
	submitted := s.state == StateSubmitted
	s.mu.Unlock()

	if s.clock != nil {
		v.TimeUp = s.clock.Expired()
		if !submitted {
			if left, ok := s.clock.SecondsLeft(); ok {
				v.SecondsLeft = &left
				v.Tier = TierFor(left)
			}
		}
	}
	v.Answered, v.Total = s.sheet.Progress()
	return v
}

// Subscribe returns a channel receiving the latest View after every change.
// Slow readers only miss intermediate views, never the most recent one.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.notifyMu.Lock()
	v := s.View()
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch <- v
	s.subs[id] = ch
	s.mu.Unlock()
	s.notifyMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	v := s.View()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
