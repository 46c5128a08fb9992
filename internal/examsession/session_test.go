package examsession

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scienceprep/exam-backend/internal/model"
)

type fakeSink struct {
	mu      sync.Mutex
	calls   int
	results []*model.ExamResult
	failN   int
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSink) SubmitResult(ctx context.Context, r *model.ExamResult) (uuid.UUID, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failN > 0
	if fail {
		f.failN--
	}
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		}
	}
	if fail {
		return uuid.Nil, errors.New("store unavailable")
	}

	f.mu.Lock()
	f.results = append(f.results, r)
	f.mu.Unlock()
	return uuid.New(), nil
}

func (f *fakeSink) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// scenarioExam is a one-minute exam worth three points.
func scenarioExam() *model.Exam {
	return &model.Exam{
		ID:               uuid.New(),
		Title:            "Cells",
		LevelID:          model.PrepLevelFirst,
		TimeLimitMinutes: intPtr(1),
		Published:        true,
		Questions:        sampleQuestions(),
	}
}

var testStudent = StaticIdentity{Name: "Mona", Phone: "01012345678"}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("attempt did not finish")
	}
}

func TestManualSubmitBeforeExpiry(t *testing.T) {
	sink := &fakeSink{}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Hour))
	s.Start(context.Background())

	if err := s.SetAnswer("q1", Choice(1)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	result, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Score != 2 || result.MaxScore != 3 {
		t.Errorf("result = %d/%d, want 2/3", result.Score, result.MaxScore)
	}
	if sink.Calls() != 1 {
		t.Errorf("sink called %d times, want 1", sink.Calls())
	}
	if result.StudentPhone == nil || *result.StudentPhone != "01012345678" {
		t.Errorf("StudentPhone = %v", result.StudentPhone)
	}

	v := s.View()
	if v.State != StateSubmitted {
		t.Errorf("State = %s, want submitted", v.State)
	}
	if v.SecondsLeft != nil {
		t.Errorf("SecondsLeft = %d after submit, want hidden", *v.SecondsLeft)
	}
	if v.AutoSubmitted || v.TimeUp {
		t.Error("manual submission marked as timed out")
	}
	if v.Percentage != 67 {
		t.Errorf("Percentage = %d, want 67", v.Percentage)
	}
	if got := s.Countdown().State(); got != CountdownCancelled {
		t.Errorf("countdown state = %s, want cancelled", got)
	}
	if s.Countdown().Tick() {
		t.Error("countdown still ticking after submit")
	}
}

func TestAutoSubmitOnExpiry(t *testing.T) {
	sink := &fakeSink{}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Millisecond))
	s.Start(context.Background())

	waitDone(t, s)

	if sink.Calls() != 1 {
		t.Fatalf("sink called %d times, want 1", sink.Calls())
	}
	r := sink.results[0]
	if r.Score != 0 || r.MaxScore != 3 {
		t.Errorf("result = %d/%d, want 0/3", r.Score, r.MaxScore)
	}
	for _, rec := range r.Answers {
		if rec.Answer != "" {
			t.Errorf("question %s recorded %q, want empty", rec.QuestionID, rec.Answer)
		}
	}

	v := s.View()
	if !v.AutoSubmitted {
		t.Error("AutoSubmitted = false")
	}
	if !v.TimeUp {
		t.Error("TimeUp = false")
	}
	if v.State != StateSubmitted {
		t.Errorf("State = %s, want submitted", v.State)
	}
}

func TestExpiryUsesLatestAnswers(t *testing.T) {
	sink := &fakeSink{}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Hour))
	s.Start(context.Background())

	_ = s.SetAnswer("q1", Choice(0))
	_ = s.SetAnswer("q1", Choice(1))
	_ = s.SetAnswer("q2", Text("mitochondria"))

	c := s.Countdown()
	for c.Tick() {
	}
	waitDone(t, s)

	r := sink.results[0]
	if r.Score != 2 {
		t.Errorf("Score = %d, want 2", r.Score)
	}
	if r.Answers[1].Answer != "mitochondria" {
		t.Errorf("free-text answer = %q", r.Answers[1].Answer)
	}
}

func TestConcurrentTriggersSubmitOnce(t *testing.T) {
	sink := &fakeSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Hour))
	s.Start(context.Background())

	first := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		first <- err
	}()
	<-sink.entered

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background())
			errs <- err
		}()
	}
	// Expiry while the manual submission is in flight is a no-op.
	s.expire()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrSubmissionInFlight) {
			t.Errorf("concurrent Submit error = %v, want ErrSubmissionInFlight", err)
		}
	}
	if err := s.SetAnswer("q1", Choice(0)); !errors.Is(err, ErrSubmissionInFlight) {
		t.Errorf("SetAnswer during submit = %v, want ErrSubmissionInFlight", err)
	}

	close(sink.release)
	if err := <-first; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Submit after success = %v, want ErrAlreadySubmitted", err)
	}
	if sink.Calls() != 1 {
		t.Errorf("sink called %d times, want 1", sink.Calls())
	}
	if s.View().AutoSubmitted {
		t.Error("AutoSubmitted set by a skipped expiry")
	}
}

func TestSubmitFailureAllowsRetry(t *testing.T) {
	sink := &fakeSink{failN: 1}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Hour))
	s.Start(context.Background())
	_ = s.SetAnswer("q1", Choice(1))

	_, err := s.Submit(context.Background())
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("Submit error = %v, want ErrSubmissionFailed", err)
	}

	v := s.View()
	if v.State != StateInProgress {
		t.Errorf("State = %s, want in-progress", v.State)
	}
	if v.FailureNotice == "" {
		t.Error("FailureNotice is empty after a failed submission")
	}
	if v.Score != nil {
		t.Error("Score set after a failed submission")
	}
	if s.Countdown().State() != CountdownRunning {
		t.Errorf("countdown = %s, want running", s.Countdown().State())
	}

	// The student can still change answers before retrying.
	if err := s.SetAnswer("q2", Text("retry")); err != nil {
		t.Fatalf("SetAnswer after failure: %v", err)
	}

	result, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if result.Score != 2 {
		t.Errorf("Score = %d, want 2", result.Score)
	}
	if sink.Calls() != 2 {
		t.Errorf("sink called %d times, want 2", sink.Calls())
	}
	if s.View().FailureNotice != "" {
		t.Error("FailureNotice kept after a successful retry")
	}
}

func TestSubmitTimeout(t *testing.T) {
	sink := &fakeSink{release: make(chan struct{})}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Hour), WithSubmitTimeout(10*time.Millisecond))
	s.Start(context.Background())

	_, err := s.Submit(context.Background())
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("Submit error = %v, want ErrSubmissionFailed", err)
	}
	if s.View().State != StateInProgress {
		t.Error("attempt not returned to in-progress after timeout")
	}
}

func TestUntimedExamNeverExpires(t *testing.T) {
	exam := scenarioExam()
	exam.TimeLimitMinutes = nil
	sink := &fakeSink{}
	s := New(exam, testStudent, sink, WithTickInterval(time.Millisecond))
	s.Start(context.Background())

	if s.Countdown() != nil {
		t.Fatal("untimed exam has a countdown")
	}

	time.Sleep(50 * time.Millisecond)

	if sink.Calls() != 0 {
		t.Errorf("untimed exam auto-submitted %d times", sink.Calls())
	}
	v := s.View()
	if v.Timed || v.SecondsLeft != nil || v.TimeUp {
		t.Errorf("untimed view = %+v", v)
	}
}

func TestEmptyExamSubmitsZeroPercent(t *testing.T) {
	exam := &model.Exam{ID: uuid.New(), Published: true}
	s := New(exam, StaticIdentity{}, &fakeSink{})
	s.Start(context.Background())

	result, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.MaxScore != 0 {
		t.Errorf("MaxScore = %d, want 0", result.MaxScore)
	}
	if result.StudentName != nil || result.StudentPhone != nil {
		t.Error("absent identity was stored as non-nil")
	}
	if got := s.View().Percentage; got != 0 {
		t.Errorf("Percentage = %d, want 0", got)
	}
}

func TestAnswersFrozenAfterSubmit(t *testing.T) {
	s := New(scenarioExam(), testStudent, &fakeSink{}, WithTickInterval(time.Hour))
	s.Start(context.Background())
	_ = s.SetAnswer("q1", Choice(1))

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.SetAnswer("q1", Choice(0)); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("SetAnswer after submit = %v, want ErrAlreadySubmitted", err)
	}
	if a, _ := s.Answers().Get("q1"); a.Choice == nil || *a.Choice != 1 {
		t.Error("answer changed after submit")
	}
}

func TestSetAnswerUnknownQuestion(t *testing.T) {
	s := New(scenarioExam(), testStudent, &fakeSink{})

	if err := s.SetAnswer("q42", Choice(0)); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("SetAnswer(q42) = %v, want ErrUnknownQuestion", err)
	}
	if v := s.View(); v.Answered != 0 || v.Total != 2 {
		t.Errorf("progress = %d/%d, want 0/2", v.Answered, v.Total)
	}
}

func TestClosedAttemptStoresNothing(t *testing.T) {
	sink := &fakeSink{}
	s := New(scenarioExam(), testStudent, sink, WithTickInterval(time.Millisecond))
	s.Start(context.Background())
	s.Close()

	waitDone(t, s)
	time.Sleep(100 * time.Millisecond)

	if sink.Calls() != 0 {
		t.Errorf("abandoned attempt submitted %d times", sink.Calls())
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit after Close = %v, want ErrSessionClosed", err)
	}
}

func TestSubscribeReceivesLatestView(t *testing.T) {
	s := New(scenarioExam(), testStudent, &fakeSink{}, WithTickInterval(time.Hour))
	s.Start(context.Background())

	views, cancel := s.Subscribe()
	defer cancel()

	initial := <-views
	if initial.State != StateInProgress || initial.SecondsLeft == nil || *initial.SecondsLeft != 60 {
		t.Fatalf("initial view = %+v", initial)
	}
	if initial.Tier != TierUrgent {
		t.Errorf("Tier = %s, want urgent", initial.Tier)
	}

	_ = s.SetAnswer("q1", Choice(1))
	_ = s.SetAnswer("q2", Text("done"))

	v := <-views
	if v.Answered != 2 {
		t.Errorf("Answered = %d, want 2", v.Answered)
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	v = <-views
	if v.State != StateSubmitted || v.Score == nil || *v.Score != 2 {
		t.Errorf("final view = %+v", v)
	}
}

func TestHooks(t *testing.T) {
	var (
		mu       sync.Mutex
		saved    []string
		triggers []Trigger
	)
	s := New(scenarioExam(), testStudent, &fakeSink{},
		WithTickInterval(time.Hour),
		WithAnswerHook(func(qid string, _ Answer) {
			mu.Lock()
			saved = append(saved, qid)
			mu.Unlock()
		}),
		WithSubmittedHook(func(_ *model.ExamResult, tr Trigger) {
			mu.Lock()
			triggers = append(triggers, tr)
			mu.Unlock()
		}),
	)
	s.Start(context.Background())

	_ = s.SetAnswer("q1", Choice(0))
	_ = s.SetAnswer("missing", Choice(0))
	_, _ = s.Submit(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 || saved[0] != "q1" {
		t.Errorf("answer hook calls = %v, want [q1]", saved)
	}
	if len(triggers) != 1 || triggers[0] != TriggerManual {
		t.Errorf("submitted hook calls = %v, want [manual]", triggers)
	}
}

func TestAnswerHookNeverFollowsSubmittedHook(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(event string) {
		mu.Lock()
		order = append(order, event)
		mu.Unlock()
	}

	saving := make(chan struct{})
	finishSave := make(chan struct{})
	sink := &fakeSink{entered: make(chan struct{}, 1)}
	s := New(scenarioExam(), testStudent, sink,
		WithTickInterval(time.Hour),
		WithAnswerHook(func(qid string, _ Answer) {
			close(saving)
			<-finishSave
			record("save " + qid)
		}),
		WithSubmittedHook(func(*model.ExamResult, Trigger) { record("clear") }),
	)
	s.Start(context.Background())

	answered := make(chan error, 1)
	go func() { answered <- s.SetAnswer("q1", Choice(1)) }()
	<-saving

	submitted := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		submitted <- err
	}()
	<-sink.entered
	close(finishSave)

	if err := <-answered; err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := <-submitted; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "save q1" || order[1] != "clear" {
		t.Errorf("hook order = %v, want [save q1 clear]", order)
	}
}

func TestCloseWaitsForAnswerHook(t *testing.T) {
	saving := make(chan struct{})
	finishSave := make(chan struct{})
	var saved bool
	s := New(scenarioExam(), testStudent, &fakeSink{},
		WithTickInterval(time.Hour),
		WithAnswerHook(func(string, Answer) {
			close(saving)
			<-finishSave
			saved = true
		}),
	)

	go func() { _ = s.SetAnswer("q1", Choice(1)) }()
	<-saving

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	close(finishSave)
	<-closed

	if !saved {
		t.Error("Close returned before the in-flight answer hook finished")
	}
	if err := s.SetAnswer("q2", Text("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("SetAnswer after Close = %v, want ErrSessionClosed", err)
	}
}
