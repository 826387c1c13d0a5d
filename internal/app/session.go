package app

import (
	"context"
	"sync"
	"time"

	"chat-quiz-service/internal/domain"
)

type pollRef struct {
	questionIndex int
	correctIndex  int
}

// Session is one timed run of a fixed question list in one chat.
type Session struct {
	id        int64
	chatID    int64
	questions []domain.Question
	seconds   time.Duration
	createdAt time.Time

	mu     sync.RWMutex
	cursor int
	active bool
	polls  map[string]pollRef
	cancel context.CancelFunc
}

// NewSession creates an active session stamped with the current time.
func NewSession(id, chatID int64, questions []domain.Question, seconds time.Duration) *Session {
	return NewSessionWithClock(id, chatID, questions, seconds, time.Now)
}

// NewSessionWithClock stamps the session with now().
func NewSessionWithClock(id, chatID int64, questions []domain.Question, seconds time.Duration, now func() time.Time) *Session {
	return &Session{
		id:        id,
		chatID:    chatID,
		questions: questions,
		seconds:   seconds,
		createdAt: now(),
		active:    true,
		polls:     make(map[string]pollRef),
		cancel:    func() {},
	}
}

func (s *Session) ID() int64 { return s.id }
func (s *Session) ChatID() int64 { return s.chatID }
func (s *Session) Seconds() time.Duration { return s.seconds }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) QuestionCount() int { return len(s.questions) }

// Cursor is the index of the question currently being asked.
func (s *Session) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// PollCount reports how many polls have been correlated so far.
func (s *Session) PollCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.polls)
}

// current returns the question under the cursor while the session is active and
// questions remain.
func (s *Session) current() (int, domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active || s.cursor >= len(s.questions) {
		return 0, domain.Question{}, false
	}
	return s.cursor, s.questions[s.cursor], true
}

// advance moves the cursor forward if the session is still active.
func (s *Session) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		s.cursor++
	}
}

func (s *Session) correlate(pollID string, questionIndex, correctIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[pollID] = pollRef{questionIndex: questionIndex, correctIndex: correctIndex}
}

func (s *Session) lookup(pollID string) (pollRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.active {
		return pollRef{}, false
	}
	ref, ok := s.polls[pollID]
	return ref, ok
}

func (s *Session) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// deactivate clears the active flag and wakes the loop. It reports whether the
// session was active before the call.
func (s *Session) deactivate() bool {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	cancel := s.cancel
	s.mu.Unlock()
	cancel()
	return wasActive
}
