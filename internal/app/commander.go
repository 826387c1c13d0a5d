package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"chat-quiz-service/internal/domain"
	"chat-quiz-service/internal/transport/command"
	"go.uber.org/zap"
)

const (
	ratingSize = 10
	weekDays   = 7
)

// subjectAliases maps the short command suffixes to stored subject names.
var subjectAliases = map[string]string{
	"eng":  "english",
	"ru":   "russian",
	"math": "math",
	"fiz":  "physics",
}

var builtinOrder = []string{"eng", "ru", "math", "fiz"}

// ResolveSubject maps a "/quiz<suffix>" suffix to a subject name. An empty suffix
// means every subject.
func ResolveSubject(suffix string, custom []string) (string, error) {
	suffix = strings.ToLower(strings.TrimSpace(suffix))
	if suffix == "" {
		return "", nil
	}
	if name, ok := subjectAliases[suffix]; ok {
		return name, nil
	}
	for _, name := range subjectAliases {
		if name == suffix {
			return name, nil
		}
	}
	for _, name := range custom {
		if name == suffix {
			return name, nil
		}
	}
	return "", domain.ErrUnknownSubject
}

// IsBuiltinSubject reports whether name is one of the subjects with a short alias.
func IsBuiltinSubject(name string) bool {
	for _, builtin := range subjectAliases {
		if builtin == name {
			return true
		}
	}
	return false
}

// Limits bound what a chat may ask for.
type Limits struct {
	DefaultLimit   int
	MaxLimit       int
	DefaultSeconds int
	MinSeconds     int
	MaxSeconds     int
}

// DefaultLimits are 20 questions of 15 seconds, at most 50 questions of 5-300 seconds.
func DefaultLimits() Limits {
	return Limits{DefaultLimit: 20, MaxLimit: 50, DefaultSeconds: 15, MinSeconds: 5, MaxSeconds: 300}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ledger is the coin exchange used by the withdrawal commands.
type Ledger interface {
	ExchangeRate(ctx context.Context) float64
	SetExchangeRate(ctx context.Context, rate float64) error
	RequestWithdrawal(ctx context.Context, userID int64, coins int) (domain.Withdrawal, error)
	Pending(ctx context.Context) []domain.Withdrawal
	Decide(ctx context.Context, withdrawalID int64, status domain.WithdrawalStatus) error
}

// Message is an inbound chat message.
type Message struct {
	ChatID int64
	User   domain.User
	Text   string
}

// CommanderDeps are the services the command surface talks to.
type CommanderDeps struct {
	Engine    *Engine
	Transport Transport
	Users     UserDirectory
	Subjects  SubjectCatalog
	Boards    Leaderboards
	Ledger    Ledger
}

// Commander turns chat commands into engine calls and replies.
type Commander struct {
	deps   CommanderDeps
	limits Limits
	admins map[int64]struct{}
	logger *zap.Logger
}

func NewCommander(deps CommanderDeps, limits Limits, admins []int64, logger *zap.Logger) *Commander {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Commander{deps: deps, limits: limits, admins: set, logger: logger}
}

// HandleMessage executes msg if it is a command. Other messages are ignored.
func (c *Commander) HandleMessage(ctx context.Context, msg Message) {
	cmd, ok := command.Parse(msg.Text)
	if !ok {
		return
	}
	if msg.User.ID != 0 {
		if err := c.deps.Users.Touch(ctx, msg.User); err != nil {
			c.logger.Warn("touch user", zap.Int64("user_id", msg.User.ID), zap.Error(err))
		}
	}

	var reply string
	switch cmd.Name {
	case command.Quiz:
		reply = c.startQuiz(ctx, msg, cmd)
	case command.Cancel:
		reply = c.cancelQuiz(ctx, msg)
	case command.Start, command.Info, command.Subjects:
		reply = c.subjectList(ctx)
	case command.Rating:
		reply = c.globalRating(ctx, msg)
	case command.WeekRating:
		reply = c.weekRating(ctx)
	case command.GroupRating:
		reply = formatRating("👥 Group rating:", c.deps.Boards.Group(ctx, msg.ChatID, ratingSize))
	case command.Stats:
		reply = formatStats(msg.User, c.deps.Boards.Stats(ctx, msg.User.ID))
	case command.Withdraw:
		reply = c.withdraw(ctx, msg, cmd)
	case command.SetRate, command.Withdrawals, command.Approve, command.Reject:
		if !c.isAdmin(msg.User.ID) {
			return
		}
		reply = c.admin(ctx, cmd)
	default:
		return
	}
	c.reply(ctx, msg.ChatID, reply)
}

func (c *Commander) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := c.deps.Transport.SendMessage(ctx, chatID, text); err != nil {
		c.logger.Warn("send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (c *Commander) isAdmin(userID int64) bool {
	_, ok := c.admins[userID]
	return ok
}

func (c *Commander) startQuiz(ctx context.Context, msg Message, cmd command.Command) string {
	custom := c.deps.Subjects.CustomSubjects(ctx)
	subject, err := ResolveSubject(cmd.Subject, custom)
	if err != nil {
		return fmt.Sprintf("❌ Unknown subject: %s\nAvailable: %s", cmd.Subject, strings.Join(append(append([]string{}, builtinOrder...), custom...), ", "))
	}

	limit := clamp(cmd.Int(0, c.limits.DefaultLimit), 1, c.limits.MaxLimit)
	seconds := clamp(cmd.Int(1, c.limits.DefaultSeconds), c.limits.MinSeconds, c.limits.MaxSeconds)

	err = c.deps.Engine.Start(ctx, msg.ChatID, subject, limit, time.Duration(seconds)*time.Second)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrAlreadyRunning):
		return "❌ A quiz is already running in this chat!"
	case errors.Is(err, domain.ErrNoQuestions):
		return "❌ No questions found for this subject."
	case errors.Is(err, domain.ErrShuttingDown):
		return "⏳ The bot is restarting, try again in a minute."
	default:
		c.logger.Error("start quiz", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return "⚠️ Could not start the quiz, please try again later."
	}
}

func (c *Commander) globalRating(ctx context.Context, msg Message) string {
	top := c.deps.Boards.Global(ctx, ratingSize)
	if len(top) == 0 {
		return noRatings
	}
	return formatRating("🌍 Top players:", top) + "\n\n" + formatOwnRank(c.deps.Boards.Stats(ctx, msg.User.ID).Rank)
}

func (c *Commander) weekRating(ctx context.Context) string {
	top := c.deps.Boards.Period(ctx, weekDays, ratingSize)
	if len(top) == 0 {
		return noRatings
	}
	return formatRating("🏆 Weekly top players:", top) +
		fmt.Sprintf("\n\n👥 Players this week: %d", c.deps.Boards.ActiveUsers(ctx, weekDays))
}

func (c *Commander) cancelQuiz(ctx context.Context, msg Message) string {
	if err := c.deps.Engine.Cancel(ctx, msg.ChatID); err != nil {
		if errors.Is(err, domain.ErrNotRunning) {
			return "❌ No quiz is running."
		}
		c.logger.Error("cancel quiz", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return ""
	}
	return "❗ Quiz cancelled, counting results..."
}

func (c *Commander) subjectList(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("📚 Subjects:\n\n")
	for _, alias := range builtinOrder {
		name := subjectAliases[alias]
		fmt.Fprintf(&b, "▫️ /quiz%s - %s (%d)\n", alias, name, c.deps.Subjects.Count(ctx, name))
	}
	custom := c.deps.Subjects.CustomSubjects(ctx)
	sort.Strings(custom)
	for _, name := range custom {
		fmt.Fprintf(&b, "▫️ /quiz%s (%d)\n", name, c.deps.Subjects.Count(ctx, name))
	}
	fmt.Fprintf(&b, "\n/quiz [count] [seconds] mixes all subjects (%d questions).", c.deps.Subjects.Count(ctx, ""))
	return b.String()
}

func (c *Commander) withdraw(ctx context.Context, msg Message, cmd command.Command) string {
	coins := cmd.Int(0, 0)
	if coins <= 0 {
		return fmt.Sprintf("Usage: /withdraw [coins]\nRate: %g coins = 1", c.deps.Ledger.ExchangeRate(ctx))
	}
	w, err := c.deps.Ledger.RequestWithdrawal(ctx, msg.User.ID, coins)
	if errors.Is(err, domain.ErrInsufficientCoins) {
		return "❌ Not enough coins."
	}
	if err != nil {
		c.logger.Error("request withdrawal", zap.Int64("user_id", msg.User.ID), zap.Error(err))
		return "⚠️ Could not create the withdrawal, please try again later."
	}
	return fmt.Sprintf("✅ Withdrawal #%d requested: %d coins → %.2f", w.ID, w.Coins, w.Money)
}

func (c *Commander) admin(ctx context.Context, cmd command.Command) string {
	switch cmd.Name {
	case command.SetRate:
		rate, ok := cmd.Float(0)
		if !ok || rate <= 0 {
			return "❌ Usage: /setrate [rate], e.g. /setrate 100 (100 coins = 1)"
		}
		if err := c.deps.Ledger.SetExchangeRate(ctx, rate); err != nil {
			c.logger.Error("set exchange rate", zap.Error(err))
			return "⚠️ Could not save the rate."
		}
		return fmt.Sprintf("✅ New rate: %g coins = 1", rate)
	case command.Withdrawals:
		return formatPending(c.deps.Ledger.Pending(ctx))
	default:
		status := domain.WithdrawalApproved
		if cmd.Name == command.Reject {
			status = domain.WithdrawalRejected
		}
		err := c.deps.Ledger.Decide(ctx, cmd.ID, status)
		if errors.Is(err, domain.ErrWithdrawalNotFound) {
			return fmt.Sprintf("❌ No pending withdrawal #%d.", cmd.ID)
		}
		if err != nil {
			c.logger.Error("decide withdrawal", zap.Int64("withdrawal_id", cmd.ID), zap.Error(err))
			return "⚠️ Could not update the withdrawal."
		}
		return fmt.Sprintf("✅ Withdrawal #%d %s.", cmd.ID, status)
	}
}
