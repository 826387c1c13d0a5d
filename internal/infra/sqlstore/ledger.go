package sqlstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"chat-quiz-service/internal/domain"
)

const (
	exchangeRateKey     = "exchange_rate"
	defaultExchangeRate = 100.0
)

type withdrawalRow struct {
	ID        int64     `bun:"id"`
	UserID    int64     `bun:"user_id"`
	Username  string    `bun:"username"`
	Coins     int       `bun:"amount_coins"`
	Money     float64   `bun:"amount_money"`
	Status    string    `bun:"status"`
	CreatedAt time.Time `bun:"created_at"`
}

func (r withdrawalRow) toDomain() domain.Withdrawal {
	return domain.Withdrawal{
		ID:        r.ID,
		UserID:    r.UserID,
		Username:  r.Username,
		Coins:     r.Coins,
		Money:     r.Money,
		Status:    domain.WithdrawalStatus(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

// Ledger handles coin withdrawals and the coin exchange rate.
type Ledger struct {
	gw *Gateway
}

func NewLedger(gw *Gateway) *Ledger {
	return &Ledger{gw: gw}
}

// ExchangeRate returns how many coins make one unit of money.
func (l *Ledger) ExchangeRate(ctx context.Context) float64 {
	raw, ok := FetchScalar[string](ctx, l.gw, `SELECT value FROM settings WHERE key = ?`, exchangeRateKey)
	if !ok {
		return defaultExchangeRate
	}
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate <= 0 {
		return defaultExchangeRate
	}
	return rate
}

// SetExchangeRate stores a new positive exchange rate.
func (l *Ledger) SetExchangeRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("exchange rate must be positive, got %v", rate)
	}
	query := `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if l.gw.Backend() == BackendSQLite {
		query = `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`
	}
	_, err := l.gw.Exec(ctx, query, exchangeRateKey, strconv.FormatFloat(rate, 'f', -1, 64))
	return err
}

// RequestWithdrawal debits coins and opens a pending withdrawal in one transaction.
// The balance can never go negative.
func (l *Ledger) RequestWithdrawal(ctx context.Context, userID int64, coins int) (domain.Withdrawal, error) {
	if coins <= 0 {
		return domain.Withdrawal{}, domain.ErrInsufficientCoins
	}
	money := float64(coins) / l.ExchangeRate(ctx)

	w := domain.Withdrawal{UserID: userID, Coins: coins, Money: money, Status: domain.WithdrawalPending}
	err := l.gw.InTx(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.Exec(ctx, `UPDATE users SET coins = coins - ? WHERE user_id = ? AND coins >= ?`, coins, userID, coins)
		if err != nil {
			return fmt.Errorf("debit coins: %w", err)
		}
		if n == 0 {
			return domain.ErrInsufficientCoins
		}
		id, err := tx.InsertReturningID(ctx, `INSERT INTO withdrawals (user_id, amount_coins, amount_money) VALUES (?, ?, ?)`,
			"id", userID, coins, money)
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		w.ID = id
		return nil
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}
	return w, nil
}

// Pending lists withdrawals waiting for a decision, oldest first.
func (l *Ledger) Pending(ctx context.Context) []domain.Withdrawal {
	var rows []withdrawalRow
	l.gw.FetchAll(ctx, &rows, `SELECT w.id, w.user_id, u.username, w.amount_coins, w.amount_money, w.status, w.created_at
		FROM withdrawals w
		JOIN users u ON w.user_id = u.user_id
		WHERE w.status = 'pending'
		ORDER BY w.id`)
	out := make([]domain.Withdrawal, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// Decide approves or rejects a pending withdrawal. Rejection refunds the coins.
// Only pending withdrawals can be decided, so a refund happens at most once.
func (l *Ledger) Decide(ctx context.Context, withdrawalID int64, status domain.WithdrawalStatus) error {
	if status != domain.WithdrawalApproved && status != domain.WithdrawalRejected {
		return fmt.Errorf("invalid withdrawal decision %q", status)
	}
	return l.gw.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var row withdrawalRow
		found, err := tx.QueryOne(ctx, &row, `SELECT id, user_id, amount_coins, amount_money, status, created_at
			FROM withdrawals WHERE id = ?`, withdrawalID)
		if err != nil {
			return fmt.Errorf("read withdrawal: %w", err)
		}
		if !found {
			return domain.ErrWithdrawalNotFound
		}

		n, err := tx.Exec(ctx, `UPDATE withdrawals SET status = ? WHERE id = ? AND status = 'pending'`, string(status), withdrawalID)
		if err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}
		if n == 0 {
			return domain.ErrWithdrawalNotFound
		}

		if status == domain.WithdrawalRejected {
			if _, err := tx.Exec(ctx, `UPDATE users SET coins = coins + ? WHERE user_id = ?`, row.Coins, row.UserID); err != nil {
				return fmt.Errorf("refund coins: %w", err)
			}
		}
		return nil
	})
}
