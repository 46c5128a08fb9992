package examsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scienceprep/exam-backend/internal/model"
)

const (
	// DefaultIdleTimeout is how long an attempt without viewers is kept.
	DefaultIdleTimeout = 10 * time.Minute
	sweepInterval      = time.Minute
	draftTimeout       = 3 * time.Second
)

type attemptKey struct {
	examID     uuid.UUID
	studentKey string
}

type attempt struct {
	session  *Session
	viewers  int
	lastSeen time.Time
}

// Manager keeps one live attempt per student and exam, so reopening an exam
// resumes the current attempt instead of seeding a fresh one.
type Manager struct {
	catalog ExamCatalog
	sink    ResultSink
	drafts  DraftStore
	log     zerolog.Logger
	idle    time.Duration
	opts    []Option

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	attempts map[attemptKey]*attempt
	now      func() time.Time
}

// NewManager creates a Manager. drafts may be nil.
func NewManager(catalog ExamCatalog, sink ResultSink, drafts DraftStore, log zerolog.Logger, idle time.Duration, opts ...Option) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		catalog:  catalog,
		sink:     sink,
		drafts:   drafts,
		log:      log.With().Str("component", "exam_session_manager").Logger(),
		idle:     idle,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		attempts: make(map[attemptKey]*attempt),
		now:      time.Now,
	}
}

// Open returns the student's live attempt for the exam, creating it on
// first use. Exams that are unpublished or belong to another level are
// reported as ErrExamNotFound. Each successful Open must be paired with
// Release.
func (m *Manager) Open(ctx context.Context, examID uuid.UUID, who Identity) (*Session, error) {
	key := attemptKey{examID: examID, studentKey: who.Key()}

	m.mu.Lock()
	if a, ok := m.attempts[key]; ok && !a.session.Closed() {
		if a.session.Exam().LevelID != who.Level {
			m.mu.Unlock()
			return nil, ErrExamNotFound
		}
		a.viewers++
		a.lastSeen = m.now()
		m.mu.Unlock()
		return a.session, nil
	}
	m.mu.Unlock()

	exam, err := m.catalog.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	// Students only see published exams of their own level.
	if !exam.Published || exam.LevelID != who.Level {
		return nil, ErrExamNotFound
	}

	s := m.newSession(ctx, exam, who)

	m.mu.Lock()
	// Another Open may have won while the exam was loading.
	if a, ok := m.attempts[key]; ok && !a.session.Closed() {
		a.viewers++
		a.lastSeen = m.now()
		m.mu.Unlock()
		return a.session, nil
	}
	m.attempts[key] = &attempt{session: s, viewers: 1, lastSeen: m.now()}
	m.mu.Unlock()

	s.Start(m.ctx)

	m.log.Info().
		Str("exam_id", examID.String()).
		Str("student", key.studentKey).
		Msg("Attempt opened")
	return s, nil
}

func (m *Manager) newSession(ctx context.Context, exam *model.Exam, who Identity) *Session {
	studentKey := who.Key()
	log := m.log.With().
		Str("exam_id", exam.ID.String()).
		Str("student_phone", who.Phone).
		Logger()

	opts := append([]Option{WithLogger(log)}, m.opts...)
	if m.drafts != nil {
		opts = append(opts,
			WithAnswerHook(func(questionID string, a Answer) {
				dctx, cancel := context.WithTimeout(m.ctx, draftTimeout)
				defer cancel()
				if err := m.drafts.SaveAnswer(dctx, exam.ID, studentKey, questionID, a); err != nil {
					log.Warn().Err(err).Str("question_id", questionID).Msg("Draft save failed")
				}
			}),
			WithSubmittedHook(func(*model.ExamResult, Trigger) {
				dctx, cancel := context.WithTimeout(m.ctx, draftTimeout)
				defer cancel()
				if err := m.drafts.ClearDraft(dctx, exam.ID, studentKey); err != nil {
					log.Warn().Err(err).Msg("Draft clear failed")
				}
			}),
		)
	}

	s := New(exam, StaticIdentity(who), m.sink, opts...)

	if m.drafts != nil {
		saved, err := m.drafts.LoadDraft(ctx, exam.ID, studentKey)
		if err != nil {
			log.Warn().Err(err).Msg("Draft load failed, starting blank")
		} else if len(saved) > 0 {
			n := s.sheet.Restore(saved)
			log.Info().Int("restored", n).Msg("Draft answers restored")
		}
	}
	return s
}

// Get returns the live attempt without taking a viewer reference.
func (m *Manager) Get(examID uuid.UUID, who Identity) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.attempts[attemptKey{examID: examID, studentKey: who.Key()}]
	if !ok || a.session.Closed() {
		return nil, false
	}
	return a.session, true
}

// Release drops a viewer reference taken by Open.
func (m *Manager) Release(examID uuid.UUID, who Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.attempts[attemptKey{examID: examID, studentKey: who.Key()}]; ok {
		if a.viewers > 0 {
			a.viewers--
		}
		a.lastSeen = m.now()
	}
}

// Abandon closes an unsubmitted attempt immediately. Nothing is stored.
func (m *Manager) Abandon(ctx context.Context, examID uuid.UUID, who Identity) error {
	key := attemptKey{examID: examID, studentKey: who.Key()}

	m.mu.Lock()
	a, ok := m.attempts[key]
	if ok {
		delete(m.attempts, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	a.session.Close()
	if m.drafts != nil {
		if err := m.drafts.ClearDraft(ctx, examID, key.studentKey); err != nil {
			return fmt.Errorf("clear draft: %w", err)
		}
	}
	return nil
}

// Sweep closes attempts that have had no viewers for the idle timeout.
// Timed attempts that are not yet submitted are kept, so the countdown can
// auto-submit them and a reopen never restarts the clock. Drafts are kept so
// a later Open can still resume.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []*Session
	for key, a := range m.attempts {
		if a.viewers > 0 || !a.lastSeen.Before(cutoff) {
			continue
		}
		if a.session.onTheClock() {
			continue
		}
		stale = append(stale, a.session)
		delete(m.attempts, key)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		m.log.Debug().Int("count", len(stale)).Msg("Idle attempts released")
	}
	return len(stale)
}

// Len returns the number of tracked attempts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Run sweeps idle attempts until ctx ends, then shuts the manager down.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info().Msg("Session manager started")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Shutdown()
			m.log.Info().Msg("Session manager stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Shutdown stops every countdown. In-progress attempts are abandoned.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.attempts))
	for key, a := range m.attempts {
		sessions = append(sessions, a.session)
		delete(m.attempts, key)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
