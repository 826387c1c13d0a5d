package memory

import (
	"sync"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*app.Session),
	}
}

func (s *SessionStore) Register(session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[session.ChatID()]; ok && existing.Active() {
		return domain.ErrAlreadyRunning
	}
	s.sessions[session.ChatID()] = session
	return nil
}

func (s *SessionStore) Get(chatID int64) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[chatID]
	return session, ok
}

func (s *SessionStore) Remove(session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.sessions[session.ChatID()]; ok && current == session {
		delete(s.sessions, session.ChatID())
	}
}

func (s *SessionStore) All() []*app.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}
