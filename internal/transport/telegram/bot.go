// Package telegram connects the quiz engine to Telegram group chats through the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeout = 60

// botAPI is the subset of *tgbotapi.BotAPI the transport uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler receives inbound chat traffic.
type Handler interface {
	HandleMessage(ctx context.Context, msg app.Message)
	HandlePollAnswer(ctx context.Context, answer domain.PollAnswer) error
}

// Bot implements app.Transport over the Telegram Bot API.
type Bot struct {
	api    botAPI
	logger *zap.Logger
}

// New creates a bot from its token.
func New(token string, debug bool, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = debug
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return newBot(api, logger), nil
}

func newBot(api botAPI, logger *zap.Logger) *Bot {
	return &Bot{api: api, logger: logger}
}

func (b *Bot) SendMessage(_ context.Context, chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto sends an image by URL or by Telegram file id.
func (b *Bot) SendPhoto(_ context.Context, chatID int64, imageRef string) error {
	var file tgbotapi.RequestFileData = tgbotapi.FileID(imageRef)
	if strings.HasPrefix(imageRef, "http://") || strings.HasPrefix(imageRef, "https://") {
		file = tgbotapi.FileURL(imageRef)
	}
	if _, err := b.api.Send(tgbotapi.NewPhoto(chatID, file)); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendPoll publishes a non-anonymous quiz poll that closes after poll.OpenPeriod.
func (b *Bot) SendPoll(_ context.Context, chatID int64, poll domain.Poll) (string, error) {
	cfg := tgbotapi.NewPoll(chatID, poll.Question, poll.Options[:]...)
	cfg.Type = "quiz"
	cfg.IsAnonymous = false
	cfg.CorrectOptionID = int64(poll.CorrectIndex)
	cfg.OpenPeriod = int(poll.OpenPeriod.Seconds())

	msg, err := b.api.Send(cfg)
	if err != nil {
		return "", fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return "", errors.New("send poll: response carries no poll")
	}
	return msg.Poll.ID, nil
}

// Run long-polls for updates until ctx is done, dispatching each update on its own
// goroutine. It returns after in-flight handlers finish.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	u.AllowedUpdates = []string{"message", "poll_answer"}

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram polling started")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.dispatch(ctx, h, update)
			}()
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, h Handler, update tgbotapi.Update) {
	switch {
	case update.PollAnswer != nil:
		if err := h.HandlePollAnswer(ctx, toPollAnswer(update.PollAnswer)); err != nil {
			b.logger.Warn("poll answer failed", zap.String("poll_id", update.PollAnswer.PollID), zap.Error(err))
		}
	case update.Message != nil && update.Message.Chat != nil:
		msg := app.Message{ChatID: update.Message.Chat.ID, Text: update.Message.Text}
		if update.Message.From != nil {
			msg.User = toUser(*update.Message.From)
		}
		h.HandleMessage(ctx, msg)
	}
}

func toUser(u tgbotapi.User) domain.User {
	return domain.User{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}

// toPollAnswer keeps the first chosen option; a retracted vote has none.
func toPollAnswer(a *tgbotapi.PollAnswer) domain.PollAnswer {
	answer := domain.PollAnswer{PollID: a.PollID, User: toUser(a.User)}
	if len(a.OptionIDs) > 0 {
		option := a.OptionIDs[0]
		answer.Option = &option
	}
	return answer
}
