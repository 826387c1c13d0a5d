package app_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"chat-quiz-service/internal/domain"
)

var errSend = errors.New("send failed")

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTransport struct {
	mu        sync.Mutex
	messages  []sentMessage
	photos    []string
	polls     []domain.Poll
	calls     int
	failPolls map[int]bool
	failPhoto bool
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, _ int64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhoto {
		return errSend
	}
	f.photos = append(f.photos, ref)
	return nil
}

func (f *fakeTransport) SendPoll(_ context.Context, _ int64, poll domain.Poll) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if f.failPolls[call] {
		return "", errSend
	}
	f.polls = append(f.polls, poll)
	return fmt.Sprintf("poll-%d", call), nil
}

func (f *fakeTransport) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1].text
}

func (f *fakeTransport) sentPolls() []domain.Poll {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Poll(nil), f.polls...)
}

type fakeBank struct {
	mu       sync.Mutex
	bySubj   map[string][]domain.Question
	requests int
}

func (b *fakeBank) Questions(_ context.Context, subject string, limit int) []domain.Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	qs := b.bySubj[subject]
	if len(qs) > limit {
		qs = qs[:limit]
	}
	return append([]domain.Question{}, qs...)
}

type fakeRecords struct {
	mu     sync.Mutex
	nextID int64
	closed map[int64]bool
}

func (r *fakeRecords) Create(context.Context, int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID, nil
}

func (r *fakeRecords) Close(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed == nil {
		r.closed = make(map[int64]bool)
	}
	r.closed[id] = true
	return nil
}

func (r *fakeRecords) isClosed(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed[id]
}

type answerKey struct {
	session  int64
	user     int64
	question int
}

// fakeScores keeps answers and totals with the same delta rule as the SQL store.
type fakeScores struct {
	mu      sync.Mutex
	answers map[answerKey]int
	totals  map[int64]int
	records []domain.AnswerRecord
	users   *fakeUsers
}

func newFakeScores(users *fakeUsers) *fakeScores {
	return &fakeScores{answers: map[answerKey]int{}, totals: map[int64]int{}, users: users}
}

func (s *fakeScores) RecordAnswer(_ context.Context, rec domain.AnswerRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{rec.SessionID, rec.UserID, rec.QuestionIndex}
	delta := rec.Score() - s.answers[key]
	s.answers[key] = rec.Score()
	s.totals[rec.UserID] += delta
	s.records = append(s.records, rec)
	return delta, nil
}

func (s *fakeScores) AggregateSession(_ context.Context, sessionID int64) []domain.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := map[int64]int{}
	for key, score := range s.answers {
		if key.session == sessionID {
			sums[key.user] += score
		}
	}
	out := make([]domain.Standing, 0, len(sums))
	for id, score := range sums {
		out = append(out, domain.Standing{UserID: id, DisplayName: s.users.name(id), Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *fakeScores) recorded() []domain.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerRecord(nil), s.records...)
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func (u *fakeUsers) Touch(_ context.Context, user domain.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.users == nil {
		u.users = make(map[int64]domain.User)
	}
	u.users[user.ID] = user
	return nil
}

func (u *fakeUsers) name(id int64) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := u.users[id]
	return domain.DisplayName(id, user.Username, user.FirstName)
}

// gate is a sleeper the test steps by hand.
type gate struct {
	waits   chan time.Duration
	release chan bool
}

func newGate() *gate {
	return &gate{waits: make(chan time.Duration), release: make(chan bool)}
}

func (g *gate) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case g.waits <- d:
	case <-ctx.Done():
		return false
	}
	select {
	case ok := <-g.release:
		return ok
	case <-ctx.Done():
		return false
	}
}

// recordingSleeper returns at once and remembers what it was asked to wait.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

type prefixResolver struct{}

func (prefixResolver) Resolve(_ context.Context, ref string) (string, error) {
	return "https://cdn.test/" + ref, nil
}
