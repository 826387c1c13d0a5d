package sqlstore

import "context"

// Sessions persists quiz session records; they are the aggregation root for scores.
type Sessions struct {
	gw *Gateway
}

func NewSessions(gw *Gateway) *Sessions {
	return &Sessions{gw: gw}
}

// Create opens a session record for chatID and returns its id.
func (s *Sessions) Create(ctx context.Context, chatID int64) (int64, error) {
	return s.gw.InsertReturningID(ctx, `INSERT INTO quiz_sessions (chat_id) VALUES (?)`, "session_id", chatID)
}

// Close marks the session record inactive.
func (s *Sessions) Close(ctx context.Context, sessionID int64) error {
	_, err := s.gw.Exec(ctx, `UPDATE quiz_sessions SET is_active = 0 WHERE session_id = ?`, sessionID)
	return err
}

