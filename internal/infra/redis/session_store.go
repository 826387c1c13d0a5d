package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own a goroutine and timers, so the registry itself stays in process.
//   - Redis mirrors which chats have a running quiz (SET quiz:session:{chatID} {sessionID})
//     so operators and other instances can see live quizzes.
//   - The mirror is best-effort; losing it never blocks a start.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[int64]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
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
	if err := s.client.Set(context.Background(), Key(session.ChatID()), strconv.FormatInt(session.ID(), 10), s.ttl).Err(); err != nil {
		s.logger.Warn("mirror live session", zap.Int64("chat_id", session.ChatID()), zap.Error(err))
	}
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
	current, ok := s.sessions[session.ChatID()]
	if !ok || current != session {
		return
	}
	delete(s.sessions, session.ChatID())
	if err := s.client.Del(context.Background(), Key(session.ChatID())).Err(); err != nil {
		s.logger.Warn("clear live session mirror", zap.Int64("chat_id", session.ChatID()), zap.Error(err))
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

// LiveSessionID reads the mirrored session id for chatID from Redis.
func (s *SessionStore) LiveSessionID(ctx context.Context, chatID int64) (int64, bool) {
	id, err := s.client.Get(ctx, Key(chatID)).Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}

// Key is the Redis key mirroring chatID's running session.
func Key(chatID int64) string {
	return "quiz:session:" + strconv.FormatInt(chatID, 10)
}
