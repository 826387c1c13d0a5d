package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	updates chan tgbotapi.Update
	stopped bool
	err     error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.SendPollConfig); ok {
		return tgbotapi.Message{Poll: &tgbotapi.Poll{ID: "tg-poll-1"}}, nil
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func TestSendPollBuildsQuiz(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api, zaptest.NewLogger(t))

	id, err := bot.SendPoll(context.Background(), -100, domain.Poll{
		Question:     "❓ 1/3: 2+2?",
		Options:      [domain.OptionCount]string{"3", "4", "5", "6"},
		CorrectIndex: 1,
		OpenPeriod:   15 * time.Second,
	})
	if err != nil {
		t.Fatalf("send poll: %v", err)
	}
	if id != "tg-poll-1" {
		t.Fatalf("unexpected poll id %q", id)
	}

	cfg, ok := api.sent[0].(tgbotapi.SendPollConfig)
	if !ok {
		t.Fatalf("expected poll config, got %T", api.sent[0])
	}
	if cfg.Type != "quiz" || cfg.IsAnonymous || cfg.CorrectOptionID != 1 || cfg.OpenPeriod != 15 {
		t.Fatalf("unexpected poll config %+v", cfg)
	}
	if len(cfg.Options) != 4 || cfg.Options[1] != "4" || cfg.ChatID != -100 {
		t.Fatalf("unexpected options %+v", cfg.Options)
	}
}

func TestSendPhotoChoosesFileKind(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api, zaptest.NewLogger(t))

	if err := bot.SendPhoto(context.Background(), 1, "https://cdn.test/cat.png"); err != nil {
		t.Fatalf("send photo: %v", err)
	}
	if err := bot.SendPhoto(context.Background(), 1, "AgACAgIAAxkBAAIB"); err != nil {
		t.Fatalf("send photo: %v", err)
	}
	if _, ok := api.sent[0].(tgbotapi.PhotoConfig).File.(tgbotapi.FileURL); !ok {
		t.Fatalf("expected URL file for http reference")
	}
	if _, ok := api.sent[1].(tgbotapi.PhotoConfig).File.(tgbotapi.FileID); !ok {
		t.Fatalf("expected file id for bare reference")
	}
}

func TestSendErrorsPropagate(t *testing.T) {
	api := &fakeAPI{err: errors.New("telegram down")}
	bot := newBot(api, zaptest.NewLogger(t))
	if err := bot.SendMessage(context.Background(), 1, "hi"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := bot.SendPoll(context.Background(), 1, domain.Poll{}); err == nil {
		t.Fatalf("expected error")
	}
}

type recordingHandler struct {
	mu       sync.Mutex
	messages []app.Message
	answers  []domain.PollAnswer
	done     chan struct{}
}

func (h *recordingHandler) HandleMessage(_ context.Context, msg app.Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *recordingHandler) HandlePollAnswer(_ context.Context, answer domain.PollAnswer) error {
	h.mu.Lock()
	h.answers = append(h.answers, answer)
	h.mu.Unlock()
	h.done <- struct{}{}
	return nil
}

func TestRunDispatchesUpdates(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 3)}
	bot := newBot(api, zaptest.NewLogger(t))
	h := &recordingHandler{done: make(chan struct{}, 3)}

	user := tgbotapi.User{ID: 7, UserName: "alice", FirstName: "Alice"}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -100}, From: &user, Text: "/quiz"}}
	api.updates <- tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{PollID: "p1", User: user, OptionIDs: []int{2}}}
	api.updates <- tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{PollID: "p1", User: user}}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- bot.Run(ctx, h) }()

	for i := 0; i < 3; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("update %d not dispatched", i)
		}
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(h.messages) != 1 || h.messages[0].ChatID != -100 || h.messages[0].User.Username != "alice" {
		t.Fatalf("unexpected messages %+v", h.messages)
	}
	if len(h.answers) != 2 {
		t.Fatalf("expected 2 answers, got %+v", h.answers)
	}
	var picked, retracted int
	for _, a := range h.answers {
		if a.Option == nil {
			retracted++
		} else if *a.Option == 2 {
			picked++
		}
	}
	if picked != 1 || retracted != 1 {
		t.Fatalf("unexpected answers %+v", h.answers)
	}
	if !api.stopped {
		t.Fatalf("expected polling to be stopped")
	}
}
