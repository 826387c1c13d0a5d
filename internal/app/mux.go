package app

import (
	"context"

	"chat-quiz-service/internal/domain"
)

// ChatOwner is a transport that serves a known set of chats.
type ChatOwner interface {
	Transport
	Owns(chatID int64) bool
}

// TransportMux sends each chat's traffic to the transport that owns the chat,
// and to the fallback otherwise.
type TransportMux struct {
	owners   []ChatOwner
	fallback Transport
}

func NewTransportMux(fallback Transport, owners ...ChatOwner) *TransportMux {
	return &TransportMux{owners: owners, fallback: fallback}
}

func (m *TransportMux) route(chatID int64) Transport {
	for _, o := range m.owners {
		if o.Owns(chatID) {
			return o
		}
	}
	if m.fallback == nil {
		return discard{}
	}
	return m.fallback
}

func (m *TransportMux) SendMessage(ctx context.Context, chatID int64, text string) error {
	return m.route(chatID).SendMessage(ctx, chatID, text)
}

func (m *TransportMux) SendPhoto(ctx context.Context, chatID int64, imageRef string) error {
	return m.route(chatID).SendPhoto(ctx, chatID, imageRef)
}

func (m *TransportMux) SendPoll(ctx context.Context, chatID int64, poll domain.Poll) (string, error) {
	return m.route(chatID).SendPoll(ctx, chatID, poll)
}

type discard struct{}

func (discard) SendMessage(context.Context, int64, string) error { return domain.ErrNoTransport }
func (discard) SendPhoto(context.Context, int64, string) error { return domain.ErrNoTransport }
func (discard) SendPoll(context.Context, int64, domain.Poll) (string, error) {
	return "", domain.ErrNoTransport
}
