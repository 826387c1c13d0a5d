package sqlstore

import (
	"context"

	"chat-quiz-service/internal/domain"
)

// Rankings answers leaderboard and per-user statistics queries.
type Rankings struct {
	gw *Gateway
}

func NewRankings(gw *Gateway) *Rankings {
	return &Rankings{gw: gw}
}

// Global ranks every user by running total score.
func (r *Rankings) Global(ctx context.Context, limit int) []domain.Standing {
	var rows []standingRow
	r.gw.FetchAll(ctx, &rows, `SELECT user_id, username, first_name, total_score AS score
		FROM users
		ORDER BY total_score DESC
		LIMIT ?`, limit)
	return toStandings(rows)
}

// Group ranks users by the points they earned in quizzes held in chatID.
func (r *Rankings) Group(ctx context.Context, chatID int64, limit int) []domain.Standing {
	var rows []standingRow
	r.gw.FetchAll(ctx, &rows, `SELECT u.user_id, u.username, u.first_name, SUM(ua.score) AS score
		FROM user_answers ua
		JOIN users u ON ua.user_id = u.user_id
		JOIN quiz_sessions qs ON ua.session_id = qs.session_id
		WHERE qs.chat_id = ?
		GROUP BY u.user_id, u.username, u.first_name
		ORDER BY score DESC
		LIMIT ?`, chatID, limit)
	return toStandings(rows)
}

// Period ranks users by points earned in sessions started within the last days days.
func (r *Rankings) Period(ctx context.Context, days, limit int) []domain.Standing {
	var rows []standingRow
	r.gw.FetchAll(ctx, &rows, `SELECT u.user_id, u.username, u.first_name, SUM(ua.score) AS score
		FROM user_answers ua
		JOIN users u ON ua.user_id = u.user_id
		JOIN quiz_sessions qs ON ua.session_id = qs.session_id
		WHERE qs.created_at >= `+r.gw.Dialect().DaysAgo(days)+`
		GROUP BY u.user_id, u.username, u.first_name
		ORDER BY score DESC
		LIMIT ?`, limit)
	return toStandings(rows)
}

// ActiveUsers counts distinct users who answered in sessions of the last days days.
func (r *Rankings) ActiveUsers(ctx context.Context, days int) int {
	n, _ := FetchScalar[int](ctx, r.gw, `SELECT COUNT(DISTINCT ua.user_id)
		FROM user_answers ua
		JOIN quiz_sessions qs ON ua.session_id = qs.session_id
		WHERE qs.created_at >= `+r.gw.Dialect().DaysAgo(days))
	return n
}

// Stats returns the user's answer counts and 1-based global rank. Rank is 0 for
// unknown users.
func (r *Rankings) Stats(ctx context.Context, userID int64) domain.UserStats {
	correct, _ := FetchScalar[int](ctx, r.gw, `SELECT COUNT(*) FROM user_answers WHERE user_id = ? AND is_correct = 1`, userID)
	incorrect, _ := FetchScalar[int](ctx, r.gw, `SELECT COUNT(*) FROM user_answers WHERE user_id = ? AND is_correct = 0`, userID)
	stats := domain.UserStats{Total: correct + incorrect, Correct: correct, Incorrect: incorrect}

	total, ok := FetchScalar[int](ctx, r.gw, `SELECT total_score FROM users WHERE user_id = ?`, userID)
	if !ok {
		return stats
	}
	ahead, _ := FetchScalar[int](ctx, r.gw, `SELECT COUNT(*) FROM users WHERE total_score > ?`, total)
	stats.Rank = ahead + 1
	return stats
}
