package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer = 16
	// expired polls are forgotten after this long
	pollRetention = time.Minute
)

// Handler receives inbound room traffic.
type Handler interface {
	HandleMessage(ctx context.Context, msg app.Message)
	HandlePollAnswer(ctx context.Context, answer domain.PollAnswer) error
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type commandPayload struct {
	Text string `json:"text"`
}

type answerPayload struct {
	PollID string `json:"pollId"`
	Option *int   `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type textPayload struct {
	Text string `json:"text"`
}

type photoPayload struct {
	URL string `json:"url"`
}

type pollPayload struct {
	PollID      string   `json:"pollId"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	OpenSeconds int      `json:"openSeconds"`
}

type answeredPayload struct {
	PollID string `json:"pollId"`
}

type joinedPayload struct {
	ChatID int64  `json:"chatId"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type client struct {
	user domain.User
	send chan outboundMessage[any]
	done chan struct{}
}

type openPoll struct {
	chatID   int64
	closesAt time.Time
}

// WSHandler hosts browser chat rooms over WebSocket. A room is identified by its
// chat id; it implements app.ChatOwner so the engine can run quizzes in it.
type WSHandler struct {
	handler  Handler
	upgrader websocket.Upgrader
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.RWMutex
	rooms map[int64]map[*client]struct{}
	polls map[string]openPoll
}

func NewWSHandler(handler Handler, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		now:    time.Now,
		rooms:  make(map[int64]map[*client]struct{}),
		polls:  make(map[string]openPoll),
	}
}

// SetHandler wires inbound traffic once the engine exists.
func (h *WSHandler) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Owns reports whether chatID is a room with at least one connected client.
func (h *WSHandler) Owns(chatID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID]) > 0
}

func (h *WSHandler) SendMessage(_ context.Context, chatID int64, text string) error {
	return h.broadcast(chatID, outboundMessage[any]{Type: "message", Payload: textPayload{Text: text}})
}

func (h *WSHandler) SendPhoto(_ context.Context, chatID int64, imageRef string) error {
	return h.broadcast(chatID, outboundMessage[any]{Type: "photo", Payload: photoPayload{URL: imageRef}})
}

// SendPoll opens a poll that accepts answers until its open period ends.
func (h *WSHandler) SendPoll(_ context.Context, chatID int64, poll domain.Poll) (string, error) {
	id := uuid.NewString()
	now := h.now()

	h.mu.Lock()
	for pid, p := range h.polls {
		if now.Sub(p.closesAt) > pollRetention {
			delete(h.polls, pid)
		}
	}
	h.polls[id] = openPoll{chatID: chatID, closesAt: now.Add(poll.OpenPeriod)}
	h.mu.Unlock()

	err := h.broadcast(chatID, outboundMessage[any]{Type: "poll", Payload: pollPayload{
		PollID:      id,
		Question:    poll.Question,
		Options:     poll.Options[:],
		OpenSeconds: int(poll.OpenPeriod.Seconds()),
	}})
	if err != nil {
		h.mu.Lock()
		delete(h.polls, id)
		h.mu.Unlock()
		return "", err
	}
	return id, nil
}

func (h *WSHandler) broadcast(chatID int64, msg outboundMessage[any]) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.rooms[chatID]
	if len(room) == 0 {
		return domain.ErrNoTransport
	}
	for c := range room {
		select {
		case c.send <- msg:
		case <-c.done:
		default:
			h.logger.Warn("ws client too slow, dropping message", zap.Int64("chat_id", chatID), zap.Int64("user_id", c.user.ID))
		}
	}
	return nil
}

func (h *WSHandler) join(chatID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
}

func (h *WSHandler) leave(chatID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[chatID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
	close(c.done)
}

// acceptAnswer reports whether pollID is open in chatID.
func (h *WSHandler) acceptAnswer(chatID int64, pollID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.polls[pollID]
	return ok && p.chatID == chatID && h.now().Before(p.closesAt)
}

func (h *WSHandler) currentHandler() Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

// ServeWS upgrades HTTP requests to websockets and joins the caller to a room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatID, chatErr := strconv.ParseInt(q.Get("chatId"), 10, 64)
	userID, userErr := strconv.ParseInt(q.Get("userId"), 10, 64)
	name := q.Get("name")
	if chatErr != nil || userErr != nil || name == "" {
		http.Error(w, "missing chatId, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		user: domain.User{ID: userID, FirstName: name},
		send: make(chan outboundMessage[any], sendBuffer),
		done: make(chan struct{}),
	}
	h.join(chatID, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("ws write error", zap.Error(err))
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	c.send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{ChatID: chatID, UserID: userID, Name: name}}

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handleInbound(ctx, chatID, c, inbound)
	}

	// leaving closes done, which stops the writer
	h.leave(chatID, c)
	<-writerDone
}

func (h *WSHandler) handleInbound(ctx context.Context, chatID int64, c *client, inbound inboundMessage) {
	handler := h.currentHandler()
	if handler == nil {
		h.reply(c, "error", errorPayload{Message: "room not ready"})
		return
	}

	switch inbound.Type {
	case "command":
		var payload commandPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(c, "error", errorPayload{Message: "invalid command payload"})
			return
		}
		handler.HandleMessage(ctx, app.Message{ChatID: chatID, User: c.user, Text: payload.Text})
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.reply(c, "error", errorPayload{Message: "invalid answer payload"})
			return
		}
		if !h.acceptAnswer(chatID, payload.PollID) {
			h.reply(c, "error", errorPayload{Message: "poll is closed"})
			return
		}
		if err := handler.HandlePollAnswer(ctx, domain.PollAnswer{PollID: payload.PollID, User: c.user, Option: payload.Option}); err != nil {
			h.reply(c, "error", errorPayload{Message: "answer not recorded"})
			return
		}
		h.reply(c, "answered", answeredPayload{PollID: payload.PollID})
	default:
		h.reply(c, "error", errorPayload{Message: "unsupported message type"})
	}
}

func (h *WSHandler) reply(c *client, typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.done:
	}
}
