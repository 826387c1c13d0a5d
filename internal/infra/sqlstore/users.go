package sqlstore

import (
	"context"

	"chat-quiz-service/internal/domain"
)

const upsertUserSQL = `INSERT INTO users (user_id, username, first_name, last_name)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE
	SET username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name`

type userRow struct {
	UserID     int64  `bun:"user_id"`
	Username   string `bun:"username"`
	FirstName  string `bun:"first_name"`
	LastName   string `bun:"last_name"`
	TotalScore int    `bun:"total_score"`
	Coins      int    `bun:"coins"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:         r.UserID,
		Username:   r.Username,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		TotalScore: r.TotalScore,
		Coins:      r.Coins,
	}
}

// Users persists chat participants.
type Users struct {
	gw *Gateway
}

func NewUsers(gw *Gateway) *Users {
	return &Users{gw: gw}
}

// Touch creates the user on first sight and refreshes display fields afterwards.
func (u *Users) Touch(ctx context.Context, user domain.User) error {
	_, err := u.gw.Exec(ctx, upsertUserSQL, user.ID, user.Username, user.FirstName, user.LastName)
	return err
}

// Get returns the stored user, if any.
func (u *Users) Get(ctx context.Context, userID int64) (domain.User, bool) {
	var row userRow
	if !u.gw.FetchOne(ctx, &row, `SELECT user_id, username, first_name, last_name, total_score, coins
		FROM users WHERE user_id = ?`, userID) {
		return domain.User{}, false
	}
	return row.toDomain(), true
}
