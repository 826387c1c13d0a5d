package app

import (
	"context"

	"chat-quiz-service/internal/domain"
)

// Inbound routes transport traffic: chat messages to the commander and poll answers
// to the engine.
type Inbound struct {
	Commander *Commander
	Engine    *Engine
}

func (in Inbound) HandleMessage(ctx context.Context, msg Message) {
	in.Commander.HandleMessage(ctx, msg)
}

func (in Inbound) HandlePollAnswer(ctx context.Context, answer domain.PollAnswer) error {
	return in.Engine.HandlePollAnswer(ctx, answer)
}
