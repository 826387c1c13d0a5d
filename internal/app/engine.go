package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chat-quiz-service/internal/domain"
	"go.uber.org/zap"
)

// Timing holds the pauses around each question. The per-question time itself is
// chosen per session.
type Timing struct {
	// Grace is added to the poll's open period before advancing.
	Grace time.Duration
	// ImagePause separates a question's image from its poll.
	ImagePause time.Duration
	// RetryPause follows a poll that failed to publish.
	RetryPause time.Duration
}

// DefaultTiming mirrors the pauses the bot has always used.
func DefaultTiming() Timing {
	return Timing{Grace: 2 * time.Second, ImagePause: 600 * time.Millisecond, RetryPause: time.Second}
}

// Longest is the wall time of the largest quiz limits allow.
func (t Timing) Longest(l Limits) time.Duration {
	perQuestion := time.Duration(l.MaxSeconds)*time.Second + t.Grace + t.ImagePause
	return time.Duration(l.MaxLimit) * perQuestion
}

// errCancelled stops a broadcast whose session ended before its poll went out.
var errCancelled = errors.New("session cancelled")

// Sleeper waits for d or until ctx is done, reporting whether the full wait elapsed.
type Sleeper func(ctx context.Context, d time.Duration) bool

// Deps are the collaborators the engine drives.
type Deps struct {
	Sessions  SessionRepository
	Questions QuestionBank
	Records   SessionRecords
	Scores    Scoreboard
	Users     UserDirectory
	Transport Transport
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSleeper replaces the timer-based wait, mainly for tests.
func WithSleeper(sleep Sleeper) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithImageResolver resolves image references before they are sent.
func WithImageResolver(r ImageResolver) Option {
	return func(e *Engine) { e.images = r }
}

// Engine runs quiz sessions: one goroutine per chat, advancing on a timer and
// scoring answers as they arrive.
type Engine struct {
	deps   Deps
	timing Timing
	images ImageResolver
	sleep  Sleeper
	logger *zap.Logger

	// base outlives session cancellation so in-flight publishes are never interrupted.
	base context.Context
	wg   sync.WaitGroup

	// mu orders wg.Add against Shutdown.
	mu      sync.Mutex
	closing bool
}

func NewEngine(deps Deps, timing Timing, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		deps:   deps,
		timing: timing,
		sleep:  sleepContext,
		logger: logger,
		base:   context.Background(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a quiz in chatID with up to limit questions from subject (all
// subjects when empty), each open for seconds.
func (e *Engine) Start(ctx context.Context, chatID int64, subject string, limit int, seconds time.Duration) error {
	if e.isClosing() {
		return domain.ErrShuttingDown
	}
	if s, ok := e.deps.Sessions.Get(chatID); ok && s.Active() {
		return domain.ErrAlreadyRunning
	}

	questions := e.deps.Questions.Questions(ctx, subject, limit)
	if len(questions) == 0 {
		return domain.ErrNoQuestions
	}

	sessionID, err := e.deps.Records.Create(ctx, chatID)
	if err != nil {
		return fmt.Errorf("create session record: %w", err)
	}

	session := NewSession(sessionID, chatID, questions, seconds)
	runCtx, cancel := context.WithCancel(e.base)
	session.setCancel(cancel)

	if err := e.deps.Sessions.Register(session); err != nil {
		cancel()
		e.closeRecord(ctx, sessionID)
		return err
	}

	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		session.deactivate()
		e.deps.Sessions.Remove(session)
		e.closeRecord(ctx, sessionID)
		return domain.ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Info("quiz started",
		zap.Int64("chat_id", chatID),
		zap.Int64("session_id", sessionID),
		zap.String("subject", subject),
		zap.Int("questions", len(questions)),
		zap.Duration("seconds", seconds),
	)
	if err := e.deps.Transport.SendMessage(e.base, chatID, StartAnnouncement(subject, len(questions), seconds)); err != nil {
		e.logger.Warn("announce quiz", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	go e.run(runCtx, session)
	return nil
}

func (e *Engine) closeRecord(ctx context.Context, sessionID int64) {
	if err := e.deps.Records.Close(ctx, sessionID); err != nil {
		e.logger.Warn("close orphaned session record", zap.Int64("session_id", sessionID), zap.Error(err))
	}
}

func (e *Engine) isClosing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closing
}

// Cancel stops the chat's quiz; its results are still tallied and published.
func (e *Engine) Cancel(_ context.Context, chatID int64) error {
	s, ok := e.deps.Sessions.Get(chatID)
	if !ok || !s.deactivate() {
		return domain.ErrNotRunning
	}
	e.logger.Info("quiz cancelled", zap.Int64("chat_id", chatID), zap.Int64("session_id", s.ID()))
	return nil
}

// Running reports whether chatID has an active quiz.
func (e *Engine) Running(chatID int64) bool {
	s, ok := e.deps.Sessions.Get(chatID)
	return ok && s.Active()
}

// HandlePollAnswer scores an answer to one of the running sessions' polls.
// Answers to unknown or expired polls are ignored.
func (e *Engine) HandlePollAnswer(ctx context.Context, answer domain.PollAnswer) error {
	var (
		session *Session
		ref     pollRef
	)
	for _, s := range e.deps.Sessions.All() {
		if r, ok := s.lookup(answer.PollID); ok {
			session, ref = s, r
			break
		}
	}
	if session == nil {
		e.logger.Debug("answer for unknown poll", zap.String("poll_id", answer.PollID))
		return nil
	}

	if err := e.deps.Users.Touch(ctx, answer.User); err != nil {
		e.logger.Warn("touch user", zap.Int64("user_id", answer.User.ID), zap.Error(err))
	}

	rec := domain.AnswerRecord{
		SessionID:     session.ID(),
		UserID:        answer.User.ID,
		QuestionIndex: ref.questionIndex,
		Correct:       answer.Option != nil && *answer.Option == ref.correctIndex,
	}
	if _, err := e.deps.Scores.RecordAnswer(ctx, rec); err != nil {
		// Lost answers are not retried.
		e.logger.Error("record answer",
			zap.Int64("session_id", rec.SessionID),
			zap.Int64("chat_id", session.ChatID()),
			zap.Int64("user_id", rec.UserID),
			zap.Int("question", rec.QuestionIndex),
			zap.Bool("correct", rec.Correct),
			zap.Error(err),
		)
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// Shutdown refuses new quizzes, cancels every running session and waits for their
// results to be published, or for ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	e.mu.Unlock()

	for _, s := range e.deps.Sessions.All() {
		s.deactivate()
	}
	return e.Wait(ctx)
}

// Wait blocks until every session loop has finished or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context, s *Session) {
	defer e.wg.Done()
	defer e.finish(s)

	for {
		i, q, ok := s.current()
		if !ok {
			return
		}

		err := e.broadcast(ctx, s, i, q)
		if errors.Is(err, errCancelled) {
			return
		}
		if err != nil {
			e.logger.Error("publish question",
				zap.Int64("chat_id", s.ChatID()),
				zap.Int64("session_id", s.ID()),
				zap.Int("question", i),
				zap.Error(err),
			)
			e.sleep(ctx, e.timing.RetryPause)
			s.advance()
			continue
		}

		e.sleep(ctx, s.Seconds()+e.timing.Grace)
		s.advance()
	}
}

func (e *Engine) broadcast(ctx context.Context, s *Session, i int, q domain.Question) error {
	if q.ImageRef != "" {
		if err := e.sendImage(s.ChatID(), q.ImageRef); err != nil {
			e.logger.Warn("send question image", zap.Int64("chat_id", s.ChatID()), zap.Int("question", i), zap.Error(err))
		} else if !e.sleep(ctx, e.timing.ImagePause) {
			return errCancelled
		}
	}
	if !s.Active() {
		return errCancelled
	}

	poll := domain.Poll{
		Question:     fmt.Sprintf("❓ %d/%d: %s", i+1, s.QuestionCount(), q.DisplayPrompt()),
		Options:      q.Options,
		CorrectIndex: q.CorrectIndex,
		OpenPeriod:   s.Seconds(),
	}
	pollID, err := e.deps.Transport.SendPoll(e.base, s.ChatID(), poll)
	if err != nil {
		return err
	}
	if pollID == "" {
		return errors.New("transport returned empty poll id")
	}
	s.correlate(pollID, i, q.CorrectIndex)
	return nil
}

func (e *Engine) sendImage(chatID int64, ref string) error {
	if e.images != nil {
		resolved, err := e.images.Resolve(e.base, ref)
		if err != nil {
			return fmt.Errorf("resolve image: %w", err)
		}
		ref = resolved
	}
	return e.deps.Transport.SendPhoto(e.base, chatID, ref)
}

func (e *Engine) finish(s *Session) {
	defer e.deps.Sessions.Remove(s)
	s.deactivate()

	standings := e.deps.Scores.AggregateSession(e.base, s.ID())
	if err := e.deps.Records.Close(e.base, s.ID()); err != nil {
		e.logger.Error("close session record", zap.Int64("session_id", s.ID()), zap.Error(err))
	}

	text := NoAnswersMessage
	if len(standings) > 0 {
		text = FormatResults(standings)
	}
	if err := e.deps.Transport.SendMessage(e.base, s.ChatID(), text); err != nil {
		e.logger.Error("publish results", zap.Int64("chat_id", s.ChatID()), zap.Error(err))
	}
	e.logger.Info("quiz finished",
		zap.Int64("chat_id", s.ChatID()),
		zap.Int64("session_id", s.ID()),
		zap.Int("participants", len(standings)),
		zap.Duration("elapsed", time.Since(s.CreatedAt())),
	)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
