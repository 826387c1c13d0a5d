package app

import (
	"context"

	"chat-quiz-service/internal/domain"
)

// Transport is the outbound side of a chat platform.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, imageRef string) error
	// SendPoll publishes a single-correct quiz poll and returns the platform's poll id.
	SendPoll(ctx context.Context, chatID int64, poll domain.Poll) (string, error)
}

// SessionRepository abstracts where running sessions are registered (in-memory, Redis-mirrored).
type SessionRepository interface {
	// Register stores s for its chat unless the chat already has an active session.
	Register(s *Session) error
	Get(chatID int64) (*Session, bool)
	// Remove drops the chat's entry only if it still points at s.
	Remove(s *Session)
	All() []*Session
}

// QuestionBank samples questions; an empty result means nothing can be asked.
type QuestionBank interface {
	Questions(ctx context.Context, subject string, limit int) []domain.Question
}

// SessionRecords persists the session rows scores hang off.
type SessionRecords interface {
	Create(ctx context.Context, chatID int64) (int64, error)
	Close(ctx context.Context, sessionID int64) error
}

// Scoreboard records answers with delta semantics and aggregates a session.
type Scoreboard interface {
	RecordAnswer(ctx context.Context, rec domain.AnswerRecord) (int, error)
	AggregateSession(ctx context.Context, sessionID int64) []domain.Standing
}

// UserDirectory creates or refreshes participants.
type UserDirectory interface {
	Touch(ctx context.Context, user domain.User) error
}

// ImageResolver turns a stored image reference into something a transport can send.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// SubjectCatalog lists subjects and their question counts for the command surface.
type SubjectCatalog interface {
	CustomSubjects(ctx context.Context) []string
	Count(ctx context.Context, subject string) int
}

// Leaderboards serves the rating commands.
type Leaderboards interface {
	Global(ctx context.Context, limit int) []domain.Standing
	Group(ctx context.Context, chatID int64, limit int) []domain.Standing
	// Period ranks points earned in sessions of the last days days.
	Period(ctx context.Context, days, limit int) []domain.Standing
	ActiveUsers(ctx context.Context, days int) int
	Stats(ctx context.Context, userID int64) domain.UserStats
}
