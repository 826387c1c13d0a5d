package sqlstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"chat-quiz-service/internal/domain"
)

const lockStripes = 64

// stripedLock serializes writers of the same answer key without growing per key.
type stripedLock struct {
	stripes [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(rec domain.AnswerRecord) func() {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%d:%d", rec.SessionID, rec.UserID, rec.QuestionIndex)
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

type standingRow struct {
	UserID    int64  `bun:"user_id"`
	Username  string `bun:"username"`
	FirstName string `bun:"first_name"`
	Score     int    `bun:"score"`
}

func toStandings(rows []standingRow) []domain.Standing {
	out := make([]domain.Standing, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Standing{
			UserID:      r.UserID,
			DisplayName: domain.DisplayName(r.UserID, r.Username, r.FirstName),
			Score:       r.Score,
		})
	}
	return out
}

// Scores keeps per-question answer records and the users' running totals in step.
type Scores struct {
	gw    *Gateway
	locks stripedLock
}

func NewScores(gw *Gateway) *Scores {
	return &Scores{gw: gw}
}

// RecordAnswer upserts the answer and moves the user's total score and coins by the
// difference between the new and the previous score for the same key. It returns
// that difference.
func (s *Scores) RecordAnswer(ctx context.Context, rec domain.AnswerRecord) (int, error) {
	unlock := s.locks.lock(rec)
	defer unlock()

	score := rec.Score()
	var delta int
	err := s.gw.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO users (user_id) VALUES (?) ON CONFLICT (user_id) DO NOTHING`, rec.UserID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}

		var old int
		found, err := tx.QueryOne(ctx, &old, `SELECT score FROM user_answers
			WHERE session_id = ? AND user_id = ? AND question_number = ?`,
			rec.SessionID, rec.UserID, rec.QuestionIndex)
		if err != nil {
			return fmt.Errorf("read previous answer: %w", err)
		}

		if found {
			if _, err := tx.Exec(ctx, `UPDATE user_answers SET is_correct = ?, score = ?
				WHERE session_id = ? AND user_id = ? AND question_number = ?`,
				score, score, rec.SessionID, rec.UserID, rec.QuestionIndex); err != nil {
				return fmt.Errorf("update answer: %w", err)
			}
			delta = score - old
		} else {
			if _, err := tx.Exec(ctx, `INSERT INTO user_answers (session_id, user_id, question_number, is_correct, score)
				VALUES (?, ?, ?, ?, ?)`,
				rec.SessionID, rec.UserID, rec.QuestionIndex, score, score); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
			delta = score
		}

		if delta == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET total_score = total_score + ?, coins = coins + ? WHERE user_id = ?`,
			delta, delta, rec.UserID); err != nil {
			return fmt.Errorf("adjust totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return delta, nil
}

// AggregateSession sums each participant's scores for the session, best first.
// Ties come back in no particular order.
func (s *Scores) AggregateSession(ctx context.Context, sessionID int64) []domain.Standing {
	var rows []standingRow
	s.gw.FetchAll(ctx, &rows, `SELECT u.user_id, u.username, u.first_name, SUM(ua.score) AS score
		FROM user_answers ua
		JOIN users u ON ua.user_id = u.user_id
		WHERE ua.session_id = ?
		GROUP BY u.user_id, u.username, u.first_name
		ORDER BY score DESC`, sessionID)
	return toStandings(rows)
}
